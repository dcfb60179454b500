package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ardnew/cartbridge/link"
	"github.com/ardnew/cartbridge/pkg"
	"github.com/ardnew/cartbridge/pkg/usbid"
)

func runList(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	all := fs.Bool("all", false, "Include USB serial ports that are not carts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db := usbid.New()
	ports, err := link.Discover(db)
	if err != nil {
		return err
	}
	if db.IsLoaded() {
		pkg.LogDebug(componentCLI, "usb.ids loaded",
			"vendors", db.VendorCount(),
			"products", db.ProductCount())
	} else {
		pkg.LogDebug(componentCLI, "no usb.ids database found, using built-in names")
	}

	n := 0
	for _, p := range ports {
		if !p.Cart && !*all {
			continue
		}
		mark := " "
		if p.Cart {
			mark = "*"
		}
		fmt.Println(mark, p.String())
		n++
	}
	if n == 0 {
		fmt.Println("no carts found")
	}
	return nil
}
