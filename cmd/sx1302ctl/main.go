package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/Mohanbandaru16/sx1302-hal/stts751"
	"github.com/Mohanbandaru16/sx1302-hal/usb"
)

var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP bridge or [serialDevice] for direct serial connection ")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var verbose = flag.Bool("v", false, "verbose logging")
var muxTarget = flag.Uint("m", 0, "SPI mux `target` for one-shot register access")
var readReg = flag.String("r", "", "read register `addr` (e.g. 0x5600) and exit")
var writeReg = flag.String("w", "", "write register `addr=value` (e.g. 0x5600=0x7f) and exit")

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

var conn *usb.Device
var sensor = &stts751.Sensor{Addr: stts751.DefaultAddr}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	v := struct {
		Version    string `json:"version"`
		BuildDate  string `json:"build_date"`
		MCUVersion string `json:"mcu_version"`
	}{Version: buildVersion, BuildDate: buildDate, MCUVersion: conn.Version()}
	j, _ := json.Marshal(v)
	w.Write(j)
}

func parseAddr(s string) (uint16, error) {
	a, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	if a > 0x7FFF {
		return 0, fmt.Errorf("address %#x exceeds 15 bits", a)
	}
	return uint16(a), nil
}

func getRegister(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	addr, err := parseAddr(params["addr"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	v, err := conn.ReadRegister(uint8(*muxTarget), addr)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "{\"address\": \"%#04x\", \"value\": \"%#02x\"}\n", addr, v)
}

func setRegister(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	addr, err := parseAddr(params["addr"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}

	var body struct {
		Value uint8 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	if err := conn.WriteRegister(uint8(*muxTarget), addr, body.Value); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

func getTemperature(w http.ResponseWriter, r *http.Request) {
	t, err := sensor.Temperature()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "{\"temperature\": %g}\n", t)
}

func oneShot() error {
	target := uint8(*muxTarget)

	if *writeReg != "" {
		av := strings.SplitN(*writeReg, "=", 2)
		if len(av) != 2 {
			return fmt.Errorf("-w wants addr=value, got %q", *writeReg)
		}
		addr, err := parseAddr(av[0])
		if err != nil {
			return err
		}
		val, err := strconv.ParseUint(av[1], 0, 8)
		if err != nil {
			return err
		}
		if err := conn.WriteRegister(target, addr, uint8(val)); err != nil {
			return err
		}
		fmt.Printf("%#04x <- %#02x\n", addr, uint8(val))
	}

	if *readReg != "" {
		addr, err := parseAddr(*readReg)
		if err != nil {
			return err
		}
		v, err := conn.ReadRegister(target, addr)
		if err != nil {
			return err
		}
		fmt.Printf("%#04x -> %#02x\n", addr, v)
	}

	return nil
}

func main() {
	flag.Parse()

	if *verbose == true {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	if *connTo == "" {
		log.Fatal("Need connection string in -c option")
		os.Exit(1)
	}

	conn = usb.NewDevice()
	if err := conn.Connect(*connTo); err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := sensor.Configure(); err != nil {
		log.Errorf("Temperature sensor configuration failed: %v", err)
	}

	if *readReg != "" || *writeReg != "" {
		if err := oneShot(); err != nil {
			log.Error(err)
			conn.Close()
			os.Exit(1)
		}
		return
	}

	if *httpServe == "" {
		log.Infof("Nothing to do, MCU version is %s", conn.Version())
		return
	}

	router := mux.NewRouter()
	router.HandleFunc("/version", versionInfo).Methods("GET")
	router.HandleFunc("/register/{addr}", getRegister).Methods("GET")
	router.HandleFunc("/register/{addr}", setRegister).Methods("POST")
	router.HandleFunc("/temperature", getTemperature).Methods("GET")

	// accept :[portnum] as well as [portnum]
	if i, err := strconv.Atoi(*httpServe); err == nil {
		*httpServe = fmt.Sprintf(":%d", i)
	}

	h := &http.Server{Addr: *httpServe, Handler: router}
	go func() { log.Error(h.ListenAndServe()) }()

	done := make(chan os.Signal, 1)
	signal.Notify(done,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	<-done

	h.Close()
}
