package metadata

import (
	"fmt"
	"strings"
)

// SceneInfo splits a Sentinel-2 product or tile identifier into its fields
func SceneInfo(sceneName string) (map[string]string, error) {
	if !strings.HasPrefix(sceneName, "S2") {
		return nil, fmt.Errorf("not a Sentinel-2 identifier: %s", sceneName)
	}
	// MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>
	if len(sceneName) >= len("MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_YYYYMMDDTHHMMSS") && sceneName[10] == '_' {
		return map[string]string{
			"SCENE":         sceneName,
			"MISSION_ID":    sceneName[0:3],
			"PRODUCT_LEVEL": sceneName[7:10],
			"DATE":          sceneName[11:19],
			"TIME":          sceneName[20:26],
			"ORBIT":         sceneName[34:37],
			"TILE":          sceneName[39:44],
			"PRODUCT_DISC":  sceneName[45:60],
		}, nil
	}
	// MMM_CCCC_MSI_LLL_TL_ssss_YYYYMMDDTHHMMSS_Axxxxxx_Txxxxx_Nxx.yy (tile identifier)
	parts := strings.Split(sceneName, "_")
	if len(parts) < 9 || parts[4] != "TL" {
		return nil, fmt.Errorf("invalid Sentinel-2 identifier: %s", sceneName)
	}
	info := map[string]string{
		"SCENE":         sceneName,
		"MISSION_ID":    parts[0],
		"PRODUCT_LEVEL": parts[3],
	}
	for _, p := range parts[5:] {
		switch {
		case len(p) == 15 && p[8] == 'T':
			info["DATE"], info["TIME"] = p[0:8], p[9:15]
		case len(p) == 6 && p[0] == 'T':
			info["TILE"] = p[1:]
		}
	}
	return info, nil
}
