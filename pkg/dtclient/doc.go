// Package dtclient provides the primary entry point for constructing a client
// that implements the dtcloud.Client interface.
//
// It layers configuration defaults, HTTP transport and credentials on top of
// the resource interfaces and types defined in the dtcloud package.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/dtcloud/pkg/dtclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With an access token you already have:
//	  cli, err := dtclient.NewWithToken(ctx, "eyJhbGciOi...")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with service account credentials exchanged for tokens on demand:
//	  cli, err = dtclient.NewWithClientCredentials(ctx, "key-id", "secret", "")
//	  if err != nil { log.Fatal(err) }
//
//	  projects, err := cli.Projects().List(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = projects
//	}
//
// Defaults
//
// BaseURL defaults to https://api.d21s.com/v2 and EmulatorURL to
// https://emulator.d21s.com/v2. Endpoints without a scheme get https://.
package dtclient
