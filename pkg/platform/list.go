package platform

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strings"

	"github.com/dotnetup/dotnetup/pkg/install"
)

// Shared framework names as the muxer reports them.
const (
	coreRuntimeName = "Microsoft.NETCore.App"
	aspnetcoreName  = "Microsoft.AspNetCore.App"
)

// installedViaDotnet queries the dotnet muxer on PATH for installed
// versions. A machine with no dotnet at all reports an empty list rather
// than an error.
func installedViaDotnet(ctx context.Context, exe Executor, mode install.Mode) ([]string, error) {
	arg := "--list-sdks"
	if mode != install.ModeSDK {
		arg = "--list-runtimes"
	}

	result, err := exe.Execute(ctx, "dotnet", arg)
	if err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, nil
	}

	if mode == install.ModeSDK {
		return parseSDKList(result.Stdout), nil
	}
	name := coreRuntimeName
	if mode == install.ModeASPNetCore {
		name = aspnetcoreName
	}
	return parseRuntimeList(result.Stdout, name), nil
}

// parseSDKList parses `dotnet --list-sdks` output, one
// "7.0.410 [/usr/share/dotnet/sdk]" line per SDK.
func parseSDKList(out string) []string {
	var versions []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) >= 1 && fields[0] != "" {
			versions = append(versions, fields[0])
		}
	}
	return versions
}

// parseRuntimeList parses `dotnet --list-runtimes` output, keeping lines
// for one shared framework:
// "Microsoft.NETCore.App 7.0.20 [/usr/share/dotnet/shared/Microsoft.NETCore.App]".
func parseRuntimeList(out, framework string) []string {
	var versions []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) >= 2 && fields[0] == framework {
			versions = append(versions, fields[1])
		}
	}
	return versions
}
