package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "xonarsrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `xonarsrv drives Asus Xonar DX sound cards (C-Media CMI8788) from user
space and exposes their mixer over HTTP.

Usage:
	xonarsrv <command>

Commands:
	run
	dump
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `xonarsrv is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Each entry of Cards is one slot of the card registry:
	Enable: false skips the slot
	Index: a negative index takes the lowest free one
	ID: defaults to card<index>
	PCIAddr: sysfs address; empty uses the next CMI8788 on the bus
	UIO: UIO node bound to the card; empty polls the interrupt status

Every card is served under its Endpoint:
	GET         /volume/range
	GET, POST   /volume        {"ints": [8 levels]}
	GET, POST   /mute          {"bool": true}
	GET, POST   /front-panel   {"bool": true}
	GET, POST   /lock          {"bool": true} refuses writes with 423
	GET         /external-power, /state, /dump, /endpoints

Mock: true serves in-memory cards, for trying clients without hardware.`
	fmt.Println(str)
}

func load() Config {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func mkconf() {
	c := load()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := load()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("xonarsrv version %v\n", Version)
}

func dump() {
	c := load()
	cards, err := ProbeCards(c, log.Default(), os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	defer cards.Close()
	for _, card := range cards.List {
		fmt.Printf("%s (%s):\n", card.Chip.Name(), card.Chip.ID())
		if err := card.Chip.Dump(os.Stdout); err != nil {
			log.Println(err)
		}
		fmt.Println()
	}
}

func run() {
	c := load()
	cards, err := ProbeCards(c, log.Default(), os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	if len(cards.List) == 0 {
		log.Fatal("no cards enabled")
	}

	srv := &http.Server{Addr: c.Addr, Handler: BuildMux(c, cards)}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Println("now listening for requests at ", c.Addr)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Println(err)
	}
	if err := cards.Close(); err != nil {
		log.Println(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "dump":
		dump()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
