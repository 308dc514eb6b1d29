package authgate

// CanProceed decides whether a caller may enter the protected area. The
// bypass branch only applies when the bypass is enabled and the runtime is a
// development environment.
func CanProceed(hasSession, verified, devBypassEnabled, isDevEnvironment bool) bool {
	return hasSession && (verified || (devBypassEnabled && isDevEnvironment))
}

// DevBypassCompiled reports whether this binary was built with the
// authgate_devbypass tag. Without it runtime settings cannot turn the
// bypass on.
func DevBypassCompiled() bool {
	return devBypassCompiled
}

// EffectiveDevBypass combines the build time switch with the runtime flag.
func EffectiveDevBypass(requested bool) bool {
	return devBypassCompiled && requested
}
