package lcm

import "github.com/Pluviolithic/lcm-go/internal/core"

// Provider implements one wire protocol, selected by URL scheme, and
// produces Connections for it.
type Provider = core.Provider

// ProviderFactory constructs a fresh Provider instance. Registry calls
// it once per RegisterProvider call; the resulting Provider instance is
// process-lived and reused across Connect calls.
type ProviderFactory = core.ProviderFactory
