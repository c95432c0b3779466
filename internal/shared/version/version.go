package version

// Version is overridden at build time with -ldflags "-X assettree/internal/shared/version.Version=...".
var Version = "dev"
