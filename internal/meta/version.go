package meta

// Version is injected at build time with -ldflags "-X tinydns/internal/meta.Version=...".
var Version = "dev"
