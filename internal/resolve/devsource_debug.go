//go:build rolecredsdebug

package resolve

// devSourceEnabled turns on the dev role source in debug builds.
const devSourceEnabled = true
