package schemas

// -- Backend Schemas --

// BackendKind identifies which browser-hosting provider a session runs on.
type BackendKind string

const (
	// BackendBrightData is a remote proxy-style scraping browser reached over
	// a provider supplied WebSocket endpoint.
	BackendBrightData BackendKind = "brightdata"
	// BackendBrowserless is a generic remote-debugging cloud service reached
	// either by a direct WebSocket URL or a base URL plus API token.
	BackendBrowserless BackendKind = "browserless"
	// BackendLocal is a locally launched (or locally attached) Chrome instance.
	BackendLocal BackendKind = "local"
)

// Valid reports whether the kind names a known backend.
func (k BackendKind) Valid() bool {
	switch k {
	case BackendBrightData, BackendBrowserless, BackendLocal:
		return true
	}
	return false
}

// BrightDataCredentials configures the remote proxy-style backend.
type BrightDataCredentials struct {
	// WebsocketEndpoint is the provider supplied wss:// connection URL.
	WebsocketEndpoint string `json:"websocketEndpoint" mapstructure:"websocket_endpoint"`
	// AuthorizedDomains lists domains the account is allow-listed for.
	// Navigation outside this list surfaces a permission error naming the domain.
	AuthorizedDomains []string `json:"authorizedDomains,omitempty" mapstructure:"authorized_domains"`
	// Password is an optional zone password appended to the endpoint.
	Password string `json:"password,omitempty" mapstructure:"password"`
}

// BrowserlessCredentials configures the generic remote-debugging cloud backend.
type BrowserlessCredentials struct {
	// ConnectionType selects between a direct WebSocket URL ("direct") and
	// base URL + token ("standard").
	ConnectionType string `json:"connectionType" mapstructure:"connection_type"`
	// WsURL is the full WebSocket URL when ConnectionType is "direct".
	WsURL string `json:"wsUrl,omitempty" mapstructure:"ws_url"`
	// BaseURL plus Token build the connection URL when ConnectionType is "standard".
	BaseURL string `json:"baseUrl,omitempty" mapstructure:"base_url"`
	Token   string `json:"token,omitempty" mapstructure:"token"`
	// StealthMode requests the provider side anti-detection profile.
	StealthMode bool `json:"stealthMode" mapstructure:"stealth_mode"`
	// RequestTimeout bounds the initial WebSocket dial.
	RequestTimeout Duration `json:"requestTimeout,omitempty" mapstructure:"request_timeout"`
}

// LocalCredentials configures the locally launched backend.
type LocalCredentials struct {
	// ExecutablePath overrides Chrome discovery. Empty means auto-detect.
	ExecutablePath string `json:"executablePath,omitempty" mapstructure:"executable_path"`
	Headless       bool   `json:"headless" mapstructure:"headless"`
	// UserDataDir persists profile state between launches when set.
	UserDataDir string   `json:"userDataDir,omitempty" mapstructure:"user_data_dir"`
	LaunchArgs  []string `json:"launchArgs,omitempty" mapstructure:"launch_args"`
	// Stealth applies the anti-detection persona before first navigation.
	Stealth           bool     `json:"stealth" mapstructure:"stealth"`
	ConnectionTimeout Duration `json:"connectionTimeout,omitempty" mapstructure:"connection_timeout"`

	// AttachToExisting switches from launching a process to attaching to a
	// running instance exposing its remote debugging port.
	AttachToExisting bool   `json:"attachToExisting" mapstructure:"attach_to_existing"`
	DebugHost        string `json:"debugHost,omitempty" mapstructure:"debug_host"`
	DebugPort        int    `json:"debugPort,omitempty" mapstructure:"debug_port"`

	// Window geometry for headed runs. When AutoCenter is set the fixed
	// position is ignored and the window is centered on the primary display.
	WindowWidth  int  `json:"windowWidth,omitempty" mapstructure:"window_width"`
	WindowHeight int  `json:"windowHeight,omitempty" mapstructure:"window_height"`
	WindowX      int  `json:"windowX,omitempty" mapstructure:"window_x"`
	WindowY      int  `json:"windowY,omitempty" mapstructure:"window_y"`
	AutoCenter   bool `json:"autoCenter" mapstructure:"auto_center"`
}

// Credentials is the tagged union handed to the transport factory. Exactly
// the record matching Kind must be populated.
type Credentials struct {
	Kind        BackendKind             `json:"kind" mapstructure:"kind"`
	BrightData  *BrightDataCredentials  `json:"brightData,omitempty" mapstructure:"brightdata"`
	Browserless *BrowserlessCredentials `json:"browserless,omitempty" mapstructure:"browserless"`
	Local       *LocalCredentials       `json:"local,omitempty" mapstructure:"local"`
}

// -- Navigation Schemas --

// WaitPolicy controls what "navigation finished" means for a NavigateTo call.
type WaitPolicy string

const (
	WaitNone       WaitPolicy = "none"       // fire and forget
	WaitFixed      WaitPolicy = "fixed"      // sleep a fixed delay
	WaitDOMReady   WaitPolicy = "domready"   // DOMContentLoaded
	WaitLoad       WaitPolicy = "load"       // window load event
	WaitNavigation WaitPolicy = "navigation" // frame navigated + load
)

// PageInfo is the uniform page metadata snapshot every transport returns.
type PageInfo struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Status *int64 `json:"status,omitempty"`
}
