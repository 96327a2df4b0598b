// Package installctx parses and renders the command line a running
// application uses to re-execute itself as the installer.
package installctx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"costrict-updater/internal/models"

	"github.com/spf13/pflag"
)

const (
	FlagUpdate     = "update"
	FlagWaitPid    = "wait-pid"
	FlagSource     = "source"
	FlagTarget     = "target"
	FlagLaunchFile = "launch-file"
	FlagForce      = "force"
	FlagNewVersion = "new-version"
)

/**
 * InstallContext 安装模式的全部输入
 * @property {int} WaitPid - 需要等待退出的调用方进程
 * @property {string} Source - 已下载并校验的安装包
 * @property {string} Target - 安装目录
 * @property {string} LaunchFile - 安装完成后启动的程序，相对于Target
 * @property {bool} Force - 透传给新版本的强制更新标记
 */
type InstallContext struct {
	WaitPid    int
	Source     string
	Target     string
	LaunchFile string
	Force      bool
}

type rawFlags struct {
	update     bool
	waitPid    string
	source     string
	target     string
	launchFile string
	force      string
	newVersion bool
}

func newFlagSet(raw *rawFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("installer", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.BoolVar(&raw.update, FlagUpdate, false, "run as installer")
	fs.StringVar(&raw.waitPid, FlagWaitPid, "", "pid of the process to wait for")
	fs.StringVar(&raw.source, FlagSource, "", "package file")
	fs.StringVar(&raw.target, FlagTarget, "", "installation directory")
	fs.StringVar(&raw.launchFile, FlagLaunchFile, "", "program to start after installation")
	fs.StringVar(&raw.force, FlagForce, "", "forced update (0|1)")
	fs.BoolVar(&raw.newVersion, FlagNewVersion, false, "first launch after an update")
	return fs
}

func parse(args []string) (*pflag.FlagSet, *rawFlags, error) {
	raw := &rawFlags{}
	fs := newFlagSet(raw)
	if err := fs.Parse(args); err != nil {
		return nil, nil, models.WrapError(models.ErrMalformedInstallArgs, err, "")
	}
	return fs, raw, nil
}

/**
 * Build an install context from process arguments
 * @param {[]string} args - Arguments without the program name
 * @returns {InstallContext} Parsed context, valid only when the bool is true
 * @returns {bool} Whether the arguments request install mode
 * @returns {error} ErrMalformedInstallArgs when install mode is requested but a value is invalid
 * @description
 * - Install mode requires --update plus wait-pid, source, target and launch-file
 * - Missing required flags mean "not install mode", not an error
 * - Surrounding double quotes are stripped from path values
 * - Unknown flags are ignored
 */
func TryParse(args []string) (InstallContext, bool, error) {
	var ic InstallContext
	fs, raw, err := parse(args)
	if err != nil {
		if hasFlag(args, FlagUpdate) {
			return ic, false, err
		}
		return ic, false, nil
	}
	if !raw.update {
		return ic, false, nil
	}
	for _, name := range []string{FlagWaitPid, FlagSource, FlagTarget, FlagLaunchFile} {
		if !fs.Changed(name) {
			return ic, false, nil
		}
	}

	pid, err := strconv.Atoi(unquote(raw.waitPid))
	if err != nil {
		return ic, false, models.WrapError(models.ErrMalformedInstallArgs, err, "--%s", FlagWaitPid)
	}
	if pid <= 0 {
		return ic, false, models.NewError(models.ErrMalformedInstallArgs, "--%s=%d", FlagWaitPid, pid)
	}
	ic.WaitPid = pid

	paths := []struct {
		name string
		src  string
		dst  *string
	}{
		{FlagSource, raw.source, &ic.Source},
		{FlagTarget, raw.target, &ic.Target},
		{FlagLaunchFile, raw.launchFile, &ic.LaunchFile},
	}
	for _, p := range paths {
		v := unquote(p.src)
		if v == "" {
			return InstallContext{}, false, models.NewError(models.ErrMalformedInstallArgs, "--%s is empty", p.name)
		}
		*p.dst = v
	}

	if fs.Changed(FlagForce) {
		force, err := parseForce(raw.force)
		if err != nil {
			return InstallContext{}, false, models.WrapError(models.ErrMalformedInstallArgs, err, "--%s", FlagForce)
		}
		ic.Force = force
	}
	return ic, true, nil
}

// Args renders the context in the form TryParse accepts.
func (c InstallContext) Args() []string {
	return []string{
		"--" + FlagUpdate,
		fmt.Sprintf("--%s=%d", FlagWaitPid, c.WaitPid),
		fmt.Sprintf("--%s=%s", FlagSource, c.Source),
		fmt.Sprintf("--%s=%s", FlagTarget, c.Target),
		fmt.Sprintf("--%s=%s", FlagLaunchFile, c.LaunchFile),
		fmt.Sprintf("--%s=%s", FlagForce, boolFlag(c.Force)),
	}
}

// NewVersionArgs are the arguments given to the freshly installed program.
func NewVersionArgs(force bool) []string {
	return []string{"--" + FlagNewVersion, fmt.Sprintf("--%s=%s", FlagForce, boolFlag(force))}
}

// IsNewVersionLaunch reports whether the program was started by the installer.
func IsNewVersionLaunch(args []string) bool {
	_, raw, err := parse(args)
	return err == nil && raw.newVersion
}

// IsForceUpdated reports whether the installer marked the update as forced.
func IsForceUpdated(args []string) bool {
	fs, raw, err := parse(args)
	if err != nil || !fs.Changed(FlagForce) {
		return false
	}
	force, err := parseForce(raw.force)
	return err == nil && force
}

func parseForce(s string) (bool, error) {
	return strconv.ParseBool(unquote(s))
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == "--"+name || strings.HasPrefix(arg, "--"+name+"=") {
			return true
		}
	}
	return false
}
