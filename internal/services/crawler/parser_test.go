package crawler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/rentwatch/internal/common"
	"github.com/ternarybob/rentwatch/internal/models"
)

const listingsPage = `
<html><body>
<div class="item">
	<div class="item-img">
		<img data-src="https://img.591.com.tw/1a.jpg">
		<img data-src="https://img.591.com.tw/1b.jpg">
	</div>
	<div class="item-info-title"><a href="/18124054">信義區溫馨套房</a></div>
	<div class="item-info-price">15,000元/月</div>
	<div class="item-style"><span>獨立套房</span><span class="line">1房1廳</span></div>
	<div class="item-info-tag"><span>可開伙</span><span>有陽台</span></div>
	<div class="item-info-txt"><strong>500公尺</strong><span>善導寺站</span></div>
</div>
<div class="item">
	<div class="item-info-title"><a href="https://rent.591.com.tw/18124055">大安區陽光雅房</a></div>
	<div class="item-info-price">9,000元/月</div>
	<div class="item-style"><span>-</span><span class="line">-</span></div>
	<div class="item-info-txt"><strong>步行8分鐘</strong><span>忠孝新生站</span></div>
</div>
<div class="item">
	<div class="item-info-title"><a href="/99"></a></div>
</div>
</body></html>`

func TestParseListings(t *testing.T) {
	p := NewParser("https://rent.591.com.tw", 10, common.GetLogger())
	listings := p.ParseListings(listingsPage)
	require.Len(t, listings, 2, "the empty-title item is skipped")

	first := listings[0]
	assert.Equal(t, "18124054", first.PropertyID)
	assert.Equal(t, "信義區溫馨套房", first.Title)
	assert.Equal(t, "https://rent.591.com.tw/18124054", first.Link, "relative link absolutized")
	assert.Equal(t, "15,000元/月", first.PriceText)
	assert.Equal(t, "獨立套房", first.HouseType)
	assert.Equal(t, "1房1廳", first.Rooms)
	assert.Equal(t, []string{"可開伙", "有陽台"}, first.Tags)
	assert.Equal(t, []string{"https://img.591.com.tw/1a.jpg", "https://img.591.com.tw/1b.jpg"}, first.ImageURLs)
	assert.Equal(t, "500公尺", first.MetroValueText)
	assert.Equal(t, "善導寺站", first.StationName)

	second := listings[1]
	assert.Equal(t, "18124055", second.PropertyID)
	assert.Equal(t, models.UnknownHouseType, second.HouseType, "marker values map to sentinels")
	assert.Equal(t, models.UnknownRooms, second.Rooms)
	assert.Equal(t, "步行8分鐘", second.MetroValueText)
	assert.Empty(t, second.ImageURLs)
}

func TestParseListings_MalformedDocument(t *testing.T) {
	p := NewParser("https://rent.591.com.tw", 10, common.GetLogger())

	assert.Empty(t, p.ParseListings(""))
	assert.Empty(t, p.ParseListings("<html><body><p>維護中</p></body></html>"))
	assert.Empty(t, p.ParseListings("not html at all >>>"))
}

func TestParseListings_ImageCap(t *testing.T) {
	var imgs strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&imgs, `<img data-src="https://img.591.com.tw/%d.jpg">`, i)
	}
	page := fmt.Sprintf(`<div class="item">
		<div class="item-img">%s</div>
		<div class="item-info-title"><a href="/42">多圖房源</a></div>
	</div>`, imgs.String())

	p := NewParser("https://rent.591.com.tw", 3, common.GetLogger())
	listings := p.ParseListings(page)
	require.Len(t, listings, 1)
	assert.Equal(t, []string{
		"https://img.591.com.tw/0.jpg",
		"https://img.591.com.tw/1.jpg",
		"https://img.591.com.tw/2.jpg",
	}, listings[0].ImageURLs)

	uncapped := NewParser("https://rent.591.com.tw", 0, common.GetLogger())
	listings = uncapped.ParseListings(page)
	require.Len(t, listings, 1)
	assert.Len(t, listings[0].ImageURLs, 5)
}

func TestParseListings_MissingLayoutUsesSentinels(t *testing.T) {
	page := `<div class="item">
		<div class="item-info-title"><a href="/777">無格局資訊</a></div>
	</div>`

	p := NewParser("https://rent.591.com.tw", 10, common.GetLogger())
	listings := p.ParseListings(page)
	require.Len(t, listings, 1)
	assert.Equal(t, models.UnknownHouseType, listings[0].HouseType)
	assert.Equal(t, models.UnknownRooms, listings[0].Rooms)
}
