// tokengen issues an HS256 access token accepted by the API so the driver
// and rider endpoints can be exercised without an identity provider.  The
// signing secret is read from JWT_SECRET (or --secret).
//
//	tokengen --user driver-1 --role driver --ttl 2h
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/campus-rideshare/internal/config"
	"github.com/iliyamo/campus-rideshare/internal/model"
	"github.com/iliyamo/campus-rideshare/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the environment is read")
	user := flags.String("user", "", "subject (user id) of the token")
	role := flags.String("role", string(model.RoleRider), "role claim: driver or rider")
	ttl := flags.Duration("ttl", time.Hour, "token lifetime")
	secret := flags.String("secret", "", "signing secret (overrides JWT_SECRET)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}
	switch {
	case *secret == "":
		return fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
	case *user == "":
		return fmt.Errorf("--user is required")
	case model.Role(*role) != model.RoleDriver && model.Role(*role) != model.RoleRider:
		return fmt.Errorf("unknown role %q", *role)
	case *ttl <= 0:
		return fmt.Errorf("--ttl must be positive")
	}

	tok, err := utils.NewAccessToken(*secret, *user, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
	return nil
}
