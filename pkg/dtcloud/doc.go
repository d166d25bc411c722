// Package dtcloud provides types, interfaces, and helpers for working with a
// cloud IoT sensor platform over its REST and Server-Sent-Events API.
//
// # Overview
//
// The dtcloud package defines the domain types (Device, Project, Organization,
// DataConnector, ServiceAccount, Member, Role, DeviceEvent) and the interfaces
// of the resource clients (DevicesClient, ProjectsClient, ...). A concrete
// implementation is provided by the dtclient package, which wires
// configuration, transport and credentials.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/dtcloud/pkg/dtclient"
//	  "github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := dtclient.New(ctx, &dtcloud.Config{
//	    Credentials: dtclient.StaticToken("token"),
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  devices, err := cli.Devices().List(ctx, "project-id", nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = devices
//	}
//
// # Pagination
//
// List methods follow continuation tokens and return every item. ListPage
// methods return a single PagedResult. CollectAll and PaginationIterator work
// with any PageFetcher.
//
// # Streams
//
// StreamsClient.Subscribe opens a long-lived event stream. Handlers run on one
// goroutine per stream in the order events arrive:
//
//	handlers := &dtcloud.EventHandlers{}
//	handlers.OnTemperature(func(deviceID string, t dtcloud.Temperature) {
//	  log.Printf("%s: %.2f", deviceID, t.Value)
//	})
//	sub, err := cli.Streams().Subscribe(ctx, "project-id", nil, handlers)
//	if err != nil { log.Fatal(err) }
//	defer sub.Close()
//
// # Errors
//
// Every failure is an *Error carrying one ErrorKind. Helpers such as
// IsNotFound and IsTooManyRequests, or errors.Is with the sentinel values,
// branch on the kind.
package dtcloud
