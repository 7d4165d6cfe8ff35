package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"portalchain/cmd/internal/secret"
	protocol "portalchain/config"
	"portalchain/services/portald/auth"
)

const (
	defaultEndpoint  = "http://127.0.0.1:7090"
	defaultSecretEnv = "PORTALD_JWT_SECRET"
	defaultIssuer    = "portald"
)

type commonFlags struct {
	endpoint  *string
	caller    *string
	secretEnv *string
	issuer    *string
	audience  *string
	ttl       *time.Duration
	timeout   *time.Duration
}

func registerCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		endpoint:  fs.String("endpoint", envOr("PORTALD_ENDPOINT", defaultEndpoint), "portald base URL"),
		caller:    fs.String("as", os.Getenv("PORTAL_CALLER"), "caller address the request is signed for"),
		secretEnv: fs.String("secret-env", defaultSecretEnv, "environment variable holding the signing secret"),
		issuer:    fs.String("issuer", defaultIssuer, "token issuer"),
		audience:  fs.String("audience", "", "token audience"),
		ttl:       fs.Duration("ttl", 5*time.Minute, "token lifetime"),
		timeout:   fs.Duration("timeout", 15*time.Second, "request timeout"),
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:])
	case "check-config":
		err = runCheckConfig(os.Args[2:])
	case "get":
		err = runRaw(http.MethodGet, os.Args[2:])
	case "post":
		err = runRaw(http.MethodPost, os.Args[2:])
	case "stake", "unstake", "contribute", "withdraw", "burn":
		err = runAmount(os.Args[1], os.Args[2:])
	case "buy", "sell":
		err = runTrade(os.Args[1], os.Args[2:])
	case "convert":
		err = runConvert(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: portalctl <command> [flags]

Commands:
  token         issue a bearer token for -as
  check-config  validate a protocol config file
  get PATH      GET a portald route
  post PATH [JSON]
                POST a portald route signed for -as
  stake|unstake -asset A -amount N
  contribute|withdraw|burn -amount N
  buy|sell      -asset A -amount N -min M
  convert       -asset A -min M
`)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	common := registerCommon(fs)
	fs.Parse(args)
	token, err := common.sign()
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runCheckConfig(args []string) error {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	path := fs.String("config", "./portal.toml", "protocol config path")
	fs.Parse(args)
	cfg, err := protocol.Load(*path)
	if err != nil {
		return err
	}
	lp, err := cfg.LiquidityParams()
	if err != nil {
		return err
	}
	fmt.Printf("reserve %s, bonding %s, convert amount %s\n", lp.ReserveSymbol, lp.BondingSymbol, lp.ConvertAmount)
	for i := range cfg.Portals {
		params, err := cfg.PortalParams(i)
		if err != nil {
			return err
		}
		fmt.Printf("portal %s: energy token %s, max lock %ds\n", params.PrincipalSymbol, params.EnergySymbol, params.MaxLockDuration)
	}
	return nil
}

func runRaw(method string, args []string) error {
	fs := flag.NewFlagSet(strings.ToLower(method), flag.ExitOnError)
	common := registerCommon(fs)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("route path required")
	}
	var body any
	if fs.NArg() > 1 {
		body = json.RawMessage(fs.Arg(1))
	}
	return common.call(method, fs.Arg(0), body, method == http.MethodPost)
}

func runAmount(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	common := registerCommon(fs)
	asset := fs.String("asset", "", "portal asset")
	amount := fs.String("amount", "", "amount in base units")
	fs.Parse(args)

	var path string
	switch command {
	case "stake", "unstake":
		if *asset == "" {
			return fmt.Errorf("-asset required")
		}
		path = "/v1/portals/" + *asset + "/" + command
	default:
		path = "/v1/liquidity/" + command
	}
	return common.call(http.MethodPost, path, map[string]string{"amount": *amount}, true)
}

func runTrade(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	common := registerCommon(fs)
	asset := fs.String("asset", "", "portal asset")
	amount := fs.String("amount", "", "amount in base units")
	minReceived := fs.String("min", "", "minimum output")
	recipient := fs.String("recipient", "", "recipient address (defaults to caller)")
	deadline := fs.Int64("deadline", 0, "unix deadline (defaults to five minutes)")
	fs.Parse(args)
	if *asset == "" {
		return fmt.Errorf("-asset required")
	}
	body := map[string]any{"amount": *amount, "minReceived": *minReceived, "recipient": *recipient, "deadline": *deadline}
	return common.call(http.MethodPost, "/v1/portals/"+*asset+"/"+command, body, true)
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	common := registerCommon(fs)
	asset := fs.String("asset", "", "asset to receive")
	minReceived := fs.String("min", "", "minimum output")
	recipient := fs.String("recipient", "", "recipient address (defaults to caller)")
	deadline := fs.Int64("deadline", 0, "unix deadline (defaults to five minutes)")
	fs.Parse(args)
	body := map[string]any{"asset": *asset, "minReceived": *minReceived, "recipient": *recipient, "deadline": *deadline}
	return common.call(http.MethodPost, "/v1/liquidity/convert", body, true)
}

func (c commonFlags) sign() (string, error) {
	if !ethcommon.IsHexAddress(strings.TrimSpace(*c.caller)) {
		return "", fmt.Errorf("-as must be a hex address")
	}
	key, err := secret.NewSource(*c.secretEnv, "").Get()
	if err != nil {
		return "", err
	}
	opts := auth.Options{Secret: key, Issuer: *c.issuer, Audience: *c.audience}
	return auth.Sign(opts, ethcommon.HexToAddress(*c.caller), *c.ttl, time.Now())
}

func (c commonFlags) call(method, path string, body any, signed bool) error {
	var token string
	if signed {
		var err error
		if token, err = c.sign(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), *c.timeout)
	defer cancel()
	payload, err := newAPIClient(*c.endpoint, token, *c.timeout).do(ctx, method, path, body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, payload, "", "  ") != nil {
		fmt.Println(string(payload))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func envOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}
