package ptysession

import (
	"os"
	"runtime"
	"strings"
)

// Platform collects the shell conventions of the host OS in one table so
// the rest of the engine never branches on the OS name.
type Platform struct {
	// Name is "posix" or "windows".
	Name string
	// Shell and ShellArgs spawn the default interactive shell.
	Shell     string
	ShellArgs []string
	// LineTerminator is appended to submitted command lines.
	LineTerminator string
	// ClearCommand clears the screen when run in the shell.
	ClearCommand string
	// BackslashPaths reports whether pushed paths use backslash separators.
	BackslashPaths bool
}

// Current returns the capability table for the running OS.
func Current() Platform {
	if runtime.GOOS == "windows" {
		return windowsPlatform()
	}
	return posixPlatform()
}

func posixPlatform() Platform {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	return Platform{
		Name:           "posix",
		Shell:          shell,
		ShellArgs:      []string{"-l"},
		LineTerminator: "\r",
		ClearCommand:   "clear",
		BackslashPaths: false,
	}
}

func windowsPlatform() Platform {
	return Platform{
		Name:           "windows",
		Shell:          "powershell.exe",
		ShellArgs:      nil,
		LineTerminator: "\r\n",
		ClearCommand:   "cls",
		BackslashPaths: true,
	}
}

// ChangeDirCommand builds the quoted cd line for a directory push. The
// path keeps forward slashes except on backslash platforms.
func (p Platform) ChangeDirCommand(path string) string {
	if p.BackslashPaths {
		path = strings.ReplaceAll(path, "/", `\`)
	}
	return `cd "` + path + `"`
}

// EchoCommand builds a line that prints text in the shell. Double quotes
// in the text are dropped rather than escaped per shell dialect.
func (p Platform) EchoCommand(text string) string {
	text = strings.ReplaceAll(text, `"`, "")
	if p.Name == "windows" {
		return `Write-Host "` + text + `"`
	}
	return `echo "` + text + `"`
}
