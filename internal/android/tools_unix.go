//go:build !windows

package android

func executableName(tool string) string {
	return tool
}
