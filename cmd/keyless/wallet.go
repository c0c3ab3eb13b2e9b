// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/internal/config"
	"github.com/GoogleCloudPlatform/keyless/keyless"
	glog "github.com/golang/glog"
	"github.com/google/subcommands"
)

// generateCmd handles CLI options for the generate command.
type generateCmd struct {
	configFile   string
	outDir       string
	showMnemonic bool
}

func (*generateCmd) Name() string { return "generate" }
func (*generateCmd) Synopsis() string {
	return "creates a new wallet and writes its device, auth and cloud packs"
}
func (*generateCmd) Usage() string {
	return `Usage: keyless generate [--config-file=<config_file>] [--out-dir=<dir>] [--show-mnemonic]

  Generate a wallet for the user in the config file and write its packs:
    $ keyless generate --out-dir=./packs

Flags:
`
}
func (g *generateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&g.configFile, "config-file", defaultConfigPath(), "Path to a keyless YAML config file. Optional.")
	f.StringVar(&g.outDir, "out-dir", ".", "Directory to write the packs to.")
	f.BoolVar(&g.showMnemonic, "show-mnemonic", false, "Print the recovery mnemonic.")
}

func (g *generateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		glog.Errorf("Failed to load config: %v", err)
		return subcommands.ExitFailure
	}
	userInfo, err := cfg.UserInfo()
	if err != nil {
		glog.Errorf("Config file lacks user information: %v", err)
		return subcommands.ExitFailure
	}

	info, err := keyless.GenerateMnemonicInfo()
	if err != nil {
		glog.Errorf("Failed to generate mnemonic: %v", err)
		return subcommands.ExitFailure
	}
	packs, err := keyless.GeneratePacks(userInfo, info, keyless.NewPackSetID())
	if err != nil {
		glog.Errorf("Failed to generate packs: %v", err)
		return subcommands.ExitFailure
	}
	if err := writePacks(g.outDir, packs); err != nil {
		glog.Errorf("Failed to write packs: %v", err)
		return subcommands.ExitFailure
	}

	fmt.Println("Pack set ID:", packs.Device.PackSetID)
	if g.showMnemonic {
		printMnemonic(info.Mnemonic)
	}
	return subcommands.ExitSuccess
}

// restoreCmd handles CLI options for the restore command.
type restoreCmd struct {
	devicePack   string
	authPack     string
	cloudPack    string
	outDir       string
	showMnemonic bool
}

func (*restoreCmd) Name() string { return "restore" }
func (*restoreCmd) Synopsis() string {
	return "restores a wallet from any two of its packs"
}
func (*restoreCmd) Usage() string {
	return `Usage: keyless restore [--device=<file>] [--auth=<file>] [--cloud=<file>] [--out-dir=<dir>] [--show-mnemonic]

  Restore from the device and cloud packs and write a fresh pack triple:
    $ keyless restore --device=device.json --cloud=cloud.json --out-dir=./restored

Flags:
`
}
func (r *restoreCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.devicePack, "device", "", "Path to a device pack file.")
	f.StringVar(&r.authPack, "auth", "", "Path to an auth pack file.")
	f.StringVar(&r.cloudPack, "cloud", "", "Path to a cloud pack file.")
	f.StringVar(&r.outDir, "out-dir", "", "Directory to write the regenerated packs to. Optional.")
	f.BoolVar(&r.showMnemonic, "show-mnemonic", false, "Print the recovered mnemonic.")
}

func (r *restoreCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var in keyless.RestoreInput
	var err error
	if in.Device, err = readPackFile(r.devicePack, keyless.UnmarshalDeviceKeyPack); err != nil {
		glog.Errorf("Failed to read device pack: %v", err)
		return subcommands.ExitFailure
	}
	if in.Auth, err = readPackFile(r.authPack, keyless.UnmarshalAuthKeyPack); err != nil {
		glog.Errorf("Failed to read auth pack: %v", err)
		return subcommands.ExitFailure
	}
	if in.Cloud, err = readPackFile(r.cloudPack, keyless.UnmarshalCloudKeyPack); err != nil {
		glog.Errorf("Failed to read cloud pack: %v", err)
		return subcommands.ExitFailure
	}

	data, err := keyless.Restore(in)
	if err != nil {
		glog.Errorf("Failed to restore wallet: %v", err)
		return subcommands.ExitFailure
	}
	if r.outDir != "" {
		if err := writePacks(r.outDir, &data.Packs); err != nil {
			glog.Errorf("Failed to write packs: %v", err)
			return subcommands.ExitFailure
		}
	}

	fmt.Println("Restored wallet for", data.Device.UserInfo.AccountEmail)
	fmt.Println("Pack set ID:", data.Packs.Device.PackSetID)
	if r.showMnemonic {
		printMnemonic(data.Mnemonic)
	}
	return subcommands.ExitSuccess
}
