//go:build windows

package android

func executableName(tool string) string {
	if tool == ToolAVDManager {
		return tool + ".bat"
	}
	return tool + ".exe"
}
