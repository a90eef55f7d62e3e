package locations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDirectoryLoads(t *testing.T) {
	dir, err := Load()
	require.NoError(t, err)

	regions := dir.Regions()
	require.NotEmpty(t, regions)
	assert.Equal(t, "NCR", regions[0].Code)
	assert.True(t, dir.HasRegion("ncr"))
	assert.True(t, dir.HasRegion("IV-A"))
	assert.False(t, dir.HasRegion("XX"))
}

func TestProvinceAndCityLookup(t *testing.T) {
	dir := MustLoad()

	cities, ok := dir.Cities("IV-A", "laguna")
	require.True(t, ok)
	assert.Contains(t, cities, "Santa Rosa")

	ifugao, ok := dir.Province("CAR", "Ifugao")
	require.True(t, ok)
	assert.True(t, ifugao.CityFreeText())

	_, ok = dir.Cities("IV-A", "Atlantis")
	assert.False(t, ok)
	assert.Nil(t, dir.Provinces("nowhere"))
}

func TestCheckWalksRegionProvinceCity(t *testing.T) {
	dir := MustLoad()

	cases := []struct {
		name                   string
		region, province, city string
		field                  string
		wantProvince, wantCity string
	}{
		{name: "canonical spelling", region: "ncr", province: "metro manila", city: "makati", wantProvince: "Metro Manila", wantCity: "Makati"},
		{name: "free text city", region: "CAR", province: "Ifugao", city: "Banaue", wantProvince: "Ifugao", wantCity: "Banaue"},
		{name: "blank region skips", wantProvince: "", wantCity: ""},
		{name: "blank city skips", region: "IV-A", province: "Laguna", wantProvince: "Laguna"},
		{name: "unknown region", region: "XX", province: "Laguna", city: "Santa Rosa", field: "region"},
		{name: "province from another region", region: "NCR", province: "Laguna", city: "Santa Rosa", field: "province"},
		{name: "city from another province", region: "NCR", province: "Metro Manila", city: "Santa Rosa", field: "city"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			province, city, err := dir.Check(tc.region, tc.province, tc.city)
			if tc.field != "" {
				var mismatch *Mismatch
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, tc.field, mismatch.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantProvince, province)
			assert.Equal(t, tc.wantCity, city)
		})
	}
}

func TestParseRejectsDuplicateCodes(t *testing.T) {
	_, err := Parse([]byte("regions:\n  - code: NCR\n    name: A\n  - code: ncr\n    name: B\n"))
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("regions: [unterminated"))
	require.Error(t, err)
}
