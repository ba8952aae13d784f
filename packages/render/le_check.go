//go:build amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm

// The renderer hands client memory to the backend as byte streams and the
// recording pipeline decodes them as little-endian floats. This file compiles
// on known little-endian targets; be_unsupported.go fails everything else.

package render
