// hdface-decode turns a recorded /osceleton2/hdface blob back into float
// vertices, for checking the fixed-point wire contract against a consumer.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"facebridge-go/internal/codec"
)

func main() {
	var (
		path    = flag.String("path", "", "Path to a raw mesh blob file")
		hexBlob = flag.String("hex", "", "Blob as a hex string (alternative to -path)")
		limit   = flag.Int("limit", 10, "Max vertices to print (0 = all)")
	)
	flag.Parse()

	var blob []byte
	switch {
	case *hexBlob != "":
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' {
				return -1
			}
			return r
		}, *hexBlob)
		decoded, err := hex.DecodeString(cleaned)
		if err != nil {
			log.Fatalf("decode hex: %v", err)
		}
		blob = decoded
	case *path != "":
		data, err := os.ReadFile(*path)
		if err != nil {
			log.Fatalf("read %s: %v", *path, err)
		}
		blob = data
	default:
		log.Fatal("one of -path or -hex is required")
	}

	mesh, err := codec.DecodeMesh(blob)
	if err != nil {
		log.Fatalf("decode mesh: %v", err)
	}

	fmt.Printf("vertices: %d (%d bytes)\n", len(mesh), len(blob))
	for i, v := range mesh {
		if *limit > 0 && i >= *limit {
			fmt.Printf("... %d more\n", len(mesh)-i)
			break
		}
		fmt.Printf("%4d: % .3f % .3f % .3f\n", i, v.X, v.Y, v.Z)
	}
}
