//go:build !rolecredsdebug

package resolve

const devSourceEnabled = false
