// Package version reports the build identity of a flowkit binary. The
// values come from -ldflags when set and from the toolchain's VCS stamps
// otherwise:
//
//	go build -ldflags "-X github.com/kbukum/flowkit/version.Version=v1.2.3" ./cmd/flowdemo
package version
