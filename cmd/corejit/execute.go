package main

import (
	"os"

	"github.com/ComedicChimera/olive"

	"corejit/abi"
	"corejit/config"
	"corejit/report"
)

// Execute is the entry point for the `corejit` CLI host.
func Execute() {
	cli := olive.NewCLI("corejit", "corejit is a managed-runtime host", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the runtime log level", false,
		[]string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("warn")
	configArg := cli.AddStringArg("config", "c", "path to runtime.toml", false)
	configArg.SetDefaultValue("runtime.toml")

	runCmd := cli.AddSubcommand("run", "load, JIT, and execute an assembly", true)
	runCmd.AddPrimaryArg("assembly-path", "the path to the root assembly", true)

	dumpCmd := cli.AddSubcommand("dump-mir", "print the MIR of a compiled assembly", true)
	dumpCmd.AddPrimaryArg("assembly-path", "the path to the assembly", true)

	verifyCmd := cli.AddSubcommand("verify", "load and verify an assembly without executing it", true)
	verifyCmd.AddPrimaryArg("assembly-path", "the path to the assembly", true)

	cli.AddSubcommand("version", "print the corejit version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.ReportFatal(err.Error())
	}

	report.Init(logLevel(result.Arguments["loglevel"].(string)))
	cfg := config.Load(result.Arguments["config"].(string))

	target := abi.ProbeHost()
	if !target.Supported() {
		report.ReportFatal("unsupported host architecture %s", target.Arch)
	}

	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "run":
		path, _ := subResult.PrimaryArg()
		execRun(cfg, path)
	case "dump-mir":
		path, _ := subResult.PrimaryArg()
		execDumpMIR(cfg, path)
	case "verify":
		path, _ := subResult.PrimaryArg()
		execVerify(cfg, path)
	case "version":
		report.DisplayVersion()
	}
}

func logLevel(name string) int {
	switch name {
	case "silent":
		return report.LogLevelSilent
	case "error":
		return report.LogLevelError
	case "verbose":
		return report.LogLevelVerbose
	default:
		return report.LogLevelWarn
	}
}
