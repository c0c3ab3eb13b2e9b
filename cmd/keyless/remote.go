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
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoogleCloudPlatform/keyless/internal/config"
	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/custody"
	"github.com/GoogleCloudPlatform/keyless/keyless/enablement"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport/authserver"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport/drive"
	glog "github.com/golang/glog"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
)

const driveTokenEnv = "KEYLESS_DRIVE_TOKEN"

func loadConfig(path string) (*config.Config, bool) {
	cfg, err := config.Load(path)
	if err != nil {
		glog.Errorf("Failed to load config: %v", err)
		return nil, false
	}
	return cfg, true
}

// newDeviceStore keeps device packs and the device secret in the TPM when one
// is usable and in the state directory otherwise.
func newDeviceStore(cfg *config.Config) (*custody.DeviceKeyStore, error) {
	fileTier, err := custody.NewFileTier(filepath.Join(cfg.Custody.StateDir, "packs"))
	if err != nil {
		return nil, err
	}
	var tiers []custody.Tier
	if !cfg.Custody.DisableTPM {
		tiers = append(tiers, custody.NewTPMTier(cfg.Custody.TPMPath, fileTier))
	}
	tiers = append(tiers, fileTier)
	secret, err := custody.LoadOrCreateDeviceSecret(tiers...)
	if err != nil {
		return nil, err
	}
	return custody.NewDeviceKeyStore(cfg.Passcode(), custody.NewSealer(secret, custody.DefaultKDFParams), tiers...), nil
}

func newDriveTransport(ctx context.Context, cfg *config.Config, accessToken string) (*drive.Transport, error) {
	if accessToken == "" {
		accessToken = os.Getenv(driveTokenEnv)
	}
	if accessToken == "" && cfg.Drive.CredentialsFile == "" {
		return nil, fmt.Errorf("no Drive credentials: set drive.credentialsFile, --access-token or %s", driveTokenEnv)
	}
	return drive.New(ctx, drive.Options{
		CredentialsFile: cfg.Drive.CredentialsFile,
		AccessToken:     accessToken,
		Space:           cfg.Drive.Space,
		Version:         keylessVersion,
	})
}

func newAuthServerClient(cfg *config.Config) (*authserver.Client, error) {
	return authserver.New(authserver.Options{
		Endpoint:          cfg.AuthServer.Endpoint,
		RequestsPerSecond: cfg.AuthServer.RequestsPerSecond,
		Timeout:           cfg.AuthServerTimeout(),
	})
}

// readOTP sends a one-time password to email and reads it from in.
// An empty answer returns enablement.ErrDeclined.
func readOTP(ctx context.Context, client *authserver.Client, email string, in *bufio.Reader, out io.Writer) (string, error) {
	if err := client.SendOTP(ctx, email); err != nil {
		return "", fmt.Errorf("sending one-time password: %w", err)
	}
	fmt.Fprintf(out, "Enter the one-time password sent to %s (empty to skip): ", email)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	otp := strings.TrimSpace(line)
	if otp == "" {
		return "", enablement.ErrDeclined
	}
	return otp, nil
}

// otpPrompter fetches the auth pack from the account service after an e-mail
// one-time password.
type otpPrompter struct {
	client *authserver.Client
	email  string
	in     *bufio.Reader
	out    io.Writer
}

func (p *otpPrompter) PromptAuthPack(ctx context.Context, packSetID string) (*keyless.AuthKeyPack, error) {
	otp, err := readOTP(ctx, p.client, p.email, p.in, p.out)
	if err != nil {
		return nil, err
	}
	pack, err := p.client.FetchAuthPack(ctx, p.email, otp, packSetID)
	if errors.Is(err, authserver.ErrInvalidOTP) {
		return nil, fmt.Errorf("%w: %v", enablement.ErrDeclined, err)
	}
	return pack, err
}

// saveDeviceCmd handles CLI options for the save-device command.
type saveDeviceCmd struct {
	configFile string
}

func (*saveDeviceCmd) Name() string { return "save-device" }
func (*saveDeviceCmd) Synopsis() string {
	return "stores a device pack in local custody"
}
func (*saveDeviceCmd) Usage() string {
	return `Usage: keyless save-device [--config-file=<config_file>] <device_pack_file>

  The session passcode is read from the environment variable named by
  custody.passcodeEnv (KEYLESS_PASSCODE by default).

Flags:
`
}
func (s *saveDeviceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.configFile, "config-file", defaultConfigPath(), "Path to a keyless YAML config file. Optional.")
}

func (s *saveDeviceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected device pack file)")
		return subcommands.ExitUsageError
	}
	cfg, ok := loadConfig(s.configFile)
	if !ok {
		return subcommands.ExitFailure
	}
	pack, err := readPackFile(f.Arg(0), keyless.UnmarshalDeviceKeyPack)
	if err != nil {
		glog.Errorf("Failed to read device pack: %v", err)
		return subcommands.ExitFailure
	}
	store, err := newDeviceStore(cfg)
	if err != nil {
		glog.Errorf("Failed to open local custody: %v", err)
		return subcommands.ExitFailure
	}
	tier, err := store.Save(ctx, pack)
	if err != nil {
		glog.Errorf("Failed to save device pack: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Saved device pack for pack set %s to %s storage\n", pack.PackSetID, tier)
	return subcommands.ExitSuccess
}

// backupCloudCmd handles CLI options for the backup-cloud command.
type backupCloudCmd struct {
	configFile  string
	accessToken string
}

func (*backupCloudCmd) Name() string { return "backup-cloud" }
func (*backupCloudCmd) Synopsis() string {
	return "backs up a cloud pack to Google Drive"
}
func (*backupCloudCmd) Usage() string {
	return `Usage: keyless backup-cloud [--config-file=<config_file>] [--access-token=<token>] <cloud_pack_file>

Flags:
`
}
func (b *backupCloudCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.configFile, "config-file", defaultConfigPath(), "Path to a keyless YAML config file. Optional.")
	f.StringVar(&b.accessToken, "access-token", "", "OAuth2 access token with the drive.appdata scope. Optional.")
}

func (b *backupCloudCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected cloud pack file)")
		return subcommands.ExitUsageError
	}
	cfg, ok := loadConfig(b.configFile)
	if !ok {
		return subcommands.ExitFailure
	}
	pack, err := readPackFile(f.Arg(0), keyless.UnmarshalCloudKeyPack)
	if err != nil {
		glog.Errorf("Failed to read cloud pack: %v", err)
		return subcommands.ExitFailure
	}
	t, err := newDriveTransport(ctx, cfg, b.accessToken)
	if err != nil {
		glog.Errorf("Failed to create Drive transport: %v", err)
		return subcommands.ExitFailure
	}
	recordID, err := transport.BackupCloudPack(ctx, t, pack)
	if err != nil {
		glog.Errorf("Failed to back up cloud pack: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Backed up cloud pack for pack set %s as Drive file %s\n", pack.PackSetID, recordID)
	return subcommands.ExitSuccess
}

// uploadAuthCmd handles CLI options for the upload-auth command.
type uploadAuthCmd struct {
	configFile string
	reset      bool
}

func (*uploadAuthCmd) Name() string { return "upload-auth" }
func (*uploadAuthCmd) Synopsis() string {
	return "stores an auth pack with the account service, or removes it"
}
func (*uploadAuthCmd) Usage() string {
	return `Usage: keyless upload-auth [--config-file=<config_file>] <auth_pack_file>
       keyless upload-auth [--config-file=<config_file>] --reset <pack_set_id>

Flags:
`
}
func (u *uploadAuthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&u.configFile, "config-file", defaultConfigPath(), "Path to a keyless YAML config file. Optional.")
	f.BoolVar(&u.reset, "reset", false, "Remove the auth pack of the given pack set instead of uploading.")
}

func (u *uploadAuthCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected auth pack file or pack set id)")
		return subcommands.ExitUsageError
	}
	cfg, ok := loadConfig(u.configFile)
	if !ok {
		return subcommands.ExitFailure
	}
	client, err := newAuthServerClient(cfg)
	if err != nil {
		glog.Errorf("Failed to create account service client: %v", err)
		return subcommands.ExitFailure
	}
	email := cfg.User.AccountEmail

	var pack *keyless.AuthKeyPack
	if !u.reset {
		if pack, err = readPackFile(f.Arg(0), keyless.UnmarshalAuthKeyPack); err != nil {
			glog.Errorf("Failed to read auth pack: %v", err)
			return subcommands.ExitFailure
		}
	}

	if u.reset {
		if err := resetAuthPack(ctx, client, email, f.Arg(0)); err != nil {
			glog.Errorf("Failed to reset auth pack: %v", err)
			return subcommands.ExitFailure
		}
		fmt.Println("Removed auth pack for pack set", f.Arg(0))
		return subcommands.ExitSuccess
	}

	otp, err := readOTP(ctx, client, email, bufio.NewReader(os.Stdin), os.Stdout)
	if err != nil {
		glog.Errorf("Failed to obtain one-time password: %v", err)
		return subcommands.ExitFailure
	}
	if err := client.UploadAuthPack(ctx, email, otp, pack); err != nil {
		glog.Errorf("Failed to upload auth pack: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("Uploaded auth pack for pack set", pack.PackSetID)
	return subcommands.ExitSuccess
}

// resetAuthPack removes the auth pack of packSetID from the account service
// after an e-mail one-time password.
func resetAuthPack(ctx context.Context, client *authserver.Client, email, packSetID string) error {
	otp, err := readOTP(ctx, client, email, bufio.NewReader(os.Stdin), os.Stdout)
	if err != nil {
		return fmt.Errorf("obtaining one-time password: %w", err)
	}
	return client.ResetAuthPack(ctx, email, otp, packSetID)
}

// removeCmd handles CLI options for the remove command.
type removeCmd struct {
	configFile string
	resetAuth  bool
}

func (*removeCmd) Name() string { return "remove" }
func (*removeCmd) Synopsis() string {
	return "removes a wallet's packs from this device"
}
func (*removeCmd) Usage() string {
	return `Usage: keyless remove [--config-file=<config_file>] [--reset-auth] <pack_set_id>

  Deletes the device pack from local custody. The Drive backup is kept. With
  --reset-auth the auth pack is also removed from the account service.

Flags:
`
}
func (r *removeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configFile, "config-file", defaultConfigPath(), "Path to a keyless YAML config file. Optional.")
	f.BoolVar(&r.resetAuth, "reset-auth", false, "Also remove the auth pack from the account service.")
}

func (r *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected pack set id)")
		return subcommands.ExitUsageError
	}
	packSetID := f.Arg(0)
	cfg, ok := loadConfig(r.configFile)
	if !ok {
		return subcommands.ExitFailure
	}
	store, err := newDeviceStore(cfg)
	if err != nil {
		glog.Errorf("Failed to open local custody: %v", err)
		return subcommands.ExitFailure
	}
	en := &enablement.Enabler{
		Device: store,
		Auth:   custody.NewAuthPackCache(cfg.Passcode(), custody.DefaultKDFParams),
	}
	if err := en.Disable(packSetID); err != nil {
		glog.Errorf("Failed to remove wallet: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("Removed device pack for pack set", packSetID)

	if !r.resetAuth {
		return subcommands.ExitSuccess
	}
	client, err := newAuthServerClient(cfg)
	if err != nil {
		glog.Errorf("Failed to create account service client: %v", err)
		return subcommands.ExitFailure
	}
	if err := resetAuthPack(ctx, client, cfg.User.AccountEmail, packSetID); err != nil {
		glog.Errorf("Failed to reset auth pack: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("Removed auth pack for pack set", packSetID)
	return subcommands.ExitSuccess
}

// enableCmd handles CLI options for the enable command.
type enableCmd struct {
	configFile   string
	accessToken  string
	outDir       string
	showMnemonic bool
}

func (*enableCmd) Name() string { return "enable" }
func (*enableCmd) Synopsis() string {
	return "restores a wallet on this device from local custody and remote backups"
}
func (*enableCmd) Usage() string {
	return `Usage: keyless enable [--config-file=<config_file>] [--access-token=<token>] [--out-dir=<dir>] [--show-mnemonic] <pack_set_id>

  Tries the locally held device and auth packs first, then the account
  service together with the Drive backup, then the device pack together
  with the Drive backup, and finally the device pack together with the
  account service. The account service is only asked for the auth pack
  before the Drive backup when no device pack is held locally.

Flags:
`
}
func (e *enableCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.configFile, "config-file", defaultConfigPath(), "Path to a keyless YAML config file. Optional.")
	f.StringVar(&e.accessToken, "access-token", "", "OAuth2 access token with the drive.appdata scope. Optional.")
	f.StringVar(&e.outDir, "out-dir", "", "Directory to write the regenerated packs to. Optional.")
	f.BoolVar(&e.showMnemonic, "show-mnemonic", false, "Print the recovered mnemonic.")
}

func (e *enableCmd) enabler(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*enablement.Enabler, error) {
	store, err := newDeviceStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening local custody: %w", err)
	}
	en := &enablement.Enabler{
		Device:  store,
		Auth:    custody.NewAuthPackCache(cfg.Passcode(), custody.DefaultKDFParams),
		Clouds:  map[string]enablement.CloudSource{},
		Metrics: enablement.NewMetrics(reg),
	}

	if t, err := newDriveTransport(ctx, cfg, e.accessToken); err != nil {
		glog.Warningf("Cloud backups unavailable: %v", err)
	} else {
		en.Clouds[cfg.User.CloudKeyProvider] = enablement.TransportSource{Transport: t}
	}

	if cfg.AuthServer.Endpoint != "" && cfg.User.AccountEmail != "" {
		client, err := newAuthServerClient(cfg)
		if err != nil {
			return nil, err
		}
		en.Prompter = &otpPrompter{client: client, email: cfg.User.AccountEmail, in: bufio.NewReader(os.Stdin), out: os.Stdout}
	}
	return en, nil
}

func logAttempts(reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		glog.Warningf("Failed to gather metrics: %v", err)
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			glog.Infof("%s{%s} %v", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}

func (e *enableCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected pack set id)")
		return subcommands.ExitUsageError
	}
	cfg, ok := loadConfig(e.configFile)
	if !ok {
		return subcommands.ExitFailure
	}
	reg := prometheus.NewRegistry()
	en, err := e.enabler(ctx, cfg, reg)
	if err != nil {
		glog.Errorf("Failed to set up enablement: %v", err)
		return subcommands.ExitFailure
	}

	data, err := en.Enable(ctx, f.Arg(0))
	if glog.V(1) {
		logAttempts(reg)
	}
	if err != nil {
		glog.Errorf("Failed to enable wallet: %v", err)
		return subcommands.ExitFailure
	}
	if data == nil {
		fmt.Println("No two packs of wallet", f.Arg(0), "are reachable from this device")
		return subcommands.ExitFailure
	}

	if e.outDir != "" {
		if err := writePacks(e.outDir, &data.Packs); err != nil {
			glog.Errorf("Failed to write packs: %v", err)
			return subcommands.ExitFailure
		}
	}
	fmt.Println("Enabled wallet", data.Packs.Device.PackSetID, "for", data.Device.UserInfo.AccountEmail)
	if e.showMnemonic {
		printMnemonic(data.Mnemonic)
	}
	return subcommands.ExitSuccess
}
