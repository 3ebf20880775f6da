package api

import (
	"github.com/scimaplab/server/pkg/colormap"
)

// ColormapInfo contains information about a registered colormap for the API
// response.
type ColormapInfo struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	Mid   string `json:"mid"`
	End   string `json:"end"`
}

func describeColormap(cm colormap.Colormap) ColormapInfo {
	return ColormapInfo{
		Name:  cm.Name(),
		Start: cm.At(0).Hex(),
		Mid:   cm.At(0.5).Hex(),
		End:   cm.At(1).Hex(),
	}
}

// colormapCatalog returns info for all registered colormaps in name order.
func colormapCatalog() []ColormapInfo {
	names := colormap.Names()
	infos := make([]ColormapInfo, 0, len(names))
	for _, name := range names {
		cm, err := colormap.Lookup(name)
		if err != nil {
			continue
		}
		infos = append(infos, describeColormap(cm))
	}
	return infos
}
