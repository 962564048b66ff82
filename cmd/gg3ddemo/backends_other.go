//go:build !linux && !windows && !darwin

package main

func registerPlatformBackends() {}
