package canonical

// Localized display names used when rendering query descriptions. Unknown ids
// fall back to the raw id so canonicalization never fails on a gap here.

var regionNames = map[string]string{
	"1":  "台北市",
	"2":  "台中市",
	"3":  "新北市",
	"4":  "台南市",
	"5":  "高雄市",
	"6":  "桃園市",
	"21": "宜蘭縣",
}

var kindNames = map[string]string{
	"1": "整層住宅",
	"2": "獨立套房",
	"3": "分租套房",
	"4": "雅房",
	"8": "車位",
}

var metroLineNames = map[string]string{
	"125": "文湖線",
	"126": "淡水信義線",
	"127": "松山新店線",
	"128": "中和新蘆線",
	"129": "板南線",
	"130": "環狀線",
}

var stationNames = map[string]string{
	"4231": "台北車站",
	"4232": "善導寺站",
	"4233": "忠孝新生站",
	"4234": "忠孝復興站",
	"4235": "忠孝敦化站",
	"4236": "國父紀念館站",
	"4237": "市政府站",
	"4238": "永春站",
	"4239": "後山埤站",
	"4240": "昆陽站",
	"4241": "南港站",
}

// StationName returns the display name for a station id, or the empty string
// when no mapping exists.
func StationName(id string) string {
	return stationNames[id]
}
