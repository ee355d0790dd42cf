package transport

// StatisticsResponse is the body of GET /json/report.
type StatisticsResponse struct {
	Data   StatisticsData `json:"data"`
	Status string         `json:"status"`
}

type StatisticsData struct {
	Airtime AirtimeStats `json:"airtime"`
	Wifi    WifiStats    `json:"wifi"`
	Memory  MemoryStats  `json:"memory"`
	Power   PowerStats   `json:"power"`
	Device  DeviceStats  `json:"device"`
	Radio   RadioStats   `json:"radio"`
}

type AirtimeStats struct {
	TxLog              []int   `json:"tx_log"`
	RxLog              []int   `json:"rx_log"`
	RxAllLog           []int   `json:"rx_all_log"`
	ChannelUtilization float64 `json:"channel_utilization"`
	UtilizationTx      float64 `json:"utilization_tx"`
	SecondsSinceBoot   int64   `json:"seconds_since_boot"`
	SecondsPerPeriod   int64   `json:"seconds_per_period"`
	PeriodsToLog       int     `json:"periods_to_log"`
}

type WifiStats struct {
	RSSI int    `json:"rssi"`
	IP   string `json:"ip"`
}

type MemoryStats struct {
	HeapTotal  int64 `json:"heap_total"`
	HeapFree   int64 `json:"heap_free"`
	PSRAMTotal int64 `json:"psram_total"`
	PSRAMFree  int64 `json:"psram_free"`
	FSTotal    int64 `json:"fs_total"`
	FSUsed     int64 `json:"fs_used"`
	FSFree     int64 `json:"fs_free"`
}

type PowerStats struct {
	BatteryPercent   int  `json:"battery_percent"`
	BatteryVoltageMV int  `json:"battery_voltage_mv"`
	HasBattery       bool `json:"has_battery"`
	HasUSB           bool `json:"has_usb"`
	IsCharging       bool `json:"is_charging"`
}

type DeviceStats struct {
	RebootCounter int `json:"reboot_counter"`
}

type RadioStats struct {
	Frequency   float64 `json:"frequency"`
	LoraChannel int     `json:"lora_channel"`
}

// NetworksResponse is the body of GET /json/scanNetworks.
type NetworksResponse struct {
	Data   NetworksData `json:"data"`
	Status string       `json:"status"`
}

type NetworksData struct {
	Networks []Network `json:"networks"`
}

type Network struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
}

// SPIFFSResponse is the file listing returned by the browse and delete calls.
type SPIFFSResponse struct {
	Data   SPIFFSData `json:"data"`
	Status string     `json:"status"`
}

type SPIFFSData struct {
	Files      []SPIFFSFile     `json:"files"`
	Filesystem SPIFFSFilesystem `json:"filesystem"`
}

type SPIFFSFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type SPIFFSFilesystem struct {
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
	Free  int64 `json:"free"`
}
