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

// This binary is the main entrypoint for the keyless command line tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/keyless/internal/config"
	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/alecthomas/colour"
	glog "github.com/golang/glog"
	"github.com/google/subcommands"
)

// The current version, displayed via the `version` subcommand.
const keylessVersion string = "0.1.0"

func defaultConfigPath() string {
	path, err := config.DefaultPath()
	if err != nil {
		glog.Errorf("Failed to get config directory location: %v", err.Error())
		return config.DefaultName
	}
	return path
}

// packFiles names the files a pack triple is written to.
func packFiles(dir, packSetID string) (device, auth, cloud string) {
	return filepath.Join(dir, "device-"+packSetID+".json"),
		filepath.Join(dir, "auth-"+packSetID+".json"),
		filepath.Join(dir, "cloud-"+packSetID+".json")
}

func writePacks(dir string, packs *keyless.Packs) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating output directory: %v", err)
	}
	devicePath, authPath, cloudPath := packFiles(dir, packs.Device.PackSetID)
	for _, out := range []struct {
		path string
		pack any
	}{
		{devicePath, packs.Device},
		{authPath, packs.Auth},
		{cloudPath, packs.Cloud},
	} {
		b, err := keyless.MarshalPack(out.pack)
		if err != nil {
			return fmt.Errorf("serializing pack: %v", err)
		}
		if err := os.WriteFile(out.path, b, 0600); err != nil {
			return fmt.Errorf("writing %s: %v", out.path, err)
		}
		fmt.Println("Wrote", out.path)
	}
	return nil
}

// readPackFile parses the pack at path. An empty path yields nil.
func readPackFile[T any](path string, parse func([]byte) (*T, error)) (*T, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pack file: %v", err)
	}
	pack, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return pack, nil
}

func printMnemonic(mnemonic string) {
	colour.Printf("^1Anyone holding these words controls the wallet. Do not store them digitally.^R\n")
	colour.Printf("^3%s^R\n", mnemonic)
}

// versionCmd handles CLI options for the version command.
type versionCmd struct{}

func (*versionCmd) Name() string     { return "version" }
func (*versionCmd) Synopsis() string { return "prints the keyless version" }
func (*versionCmd) Usage() string {
	return `Usage: keyless version
`
}
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Printf("keyless version %s\n", keylessVersion)
	return subcommands.ExitSuccess
}

func main() {
	flag.Parse()

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&generateCmd{}, "wallet")
	subcommands.Register(&restoreCmd{}, "wallet")
	subcommands.Register(&saveDeviceCmd{}, "custody")
	subcommands.Register(&backupCloudCmd{}, "custody")
	subcommands.Register(&uploadAuthCmd{}, "custody")
	subcommands.Register(&enableCmd{}, "custody")
	subcommands.Register(&removeCmd{}, "custody")
	subcommands.Register(&versionCmd{}, "")

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
