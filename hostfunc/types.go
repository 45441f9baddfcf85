package hostfunc

// Stdin types

type StdinLine struct {
	Line string `json:"line"`
	OK   bool   `json:"ok"`
}

// Environment types

type Location struct {
	Search   string `json:"search"`
	Href     string `json:"href"`
	Hostname string `json:"hostname"`
}

type WindowInfo struct {
	InnerWidth       int      `json:"inner_width"`
	InnerHeight      int      `json:"inner_height"`
	DevicePixelRatio float64  `json:"device_pixel_ratio"`
	ScreenWidth      int      `json:"screen_width"`
	ScreenHeight     int      `json:"screen_height"`
	Location         Location `json:"location"`
}
