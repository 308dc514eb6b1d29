//go:build !authgate_devbypass

package authgate

const devBypassCompiled = false
