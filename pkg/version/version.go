package version

// Version is set at build time via -ldflags "-X .../pkg/version.Version=...".
var Version = "dev"
