package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/raine/pricebanner/config"
	"github.com/raine/pricebanner/internal/llm"
	"github.com/raine/pricebanner/internal/pricing"
)

func main() {
	name := pflag.StringP("name", "n", "", "product name hint")
	tags := pflag.Bool("tags", false, "also generate tags")
	price := pflag.Float64("price", 0, "also generate a banner at this price")
	out := pflag.StringP("out", "o", "banner.png", "where to write the banner")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <barcode>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n\nFlags:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}
	barcode := pflag.Arg(0)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	config.LoadEnvFile()

	ctx := context.Background()
	gateway, err := llm.NewGeminiGateway(ctx, os.Getenv("GEMINI_API_KEY"), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating gateway: %v\n", err)
		os.Exit(1)
	}

	info, err := gateway.FetchProductInfo(ctx, llm.ProductQuery{Barcode: barcode, ProductNameHint: *name})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching product: %v\n", err)
		os.Exit(1)
	}
	printJSON(info)

	if *tags {
		fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
		generated, err := gateway.GenerateTags(ctx, info.ProductName, info.ProductDescription)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating tags: %v\n", err)
			os.Exit(1)
		}
		printJSON(generated)
	}

	if *price > 0 {
		fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
		banner, err := gateway.GenerateBanner(ctx, info.ProductName, *price)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating banner: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, banner.Data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write banner: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Banner (%s, %s) written to %s\n", banner.MIMEType, pricing.FormatWon(*price), *out)
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
