package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/zonecorr/internal/app"
	"github.com/okian/zonecorr/internal/config"
	"github.com/okian/zonecorr/internal/domain/solver"
	"github.com/okian/zonecorr/internal/domain/thermal"
	"github.com/okian/zonecorr/pkg/logger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestComputeCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	convey.Convey("Given the compute command", t, func() {
		convey.Convey("When computing with saved ranges", func() {
			out, err := run(t, "compute", "--log-level", "error", "--reactor", "R7",
				"--ranges", "+2 0 +1 -1 0 -1", "1008.5", "1003.7", "1001.2", "1000")

			convey.Convey("Then it prints the operator message", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldStartWith, "Reactor: R7 (pc)")
				convey.So(out, convey.ShouldContainSubstring, "B: +6°C")
				convey.So(out, convey.ShouldContainSubstring, "C: -13.5°C")
				convey.So(out, convey.ShouldContainSubstring, "D: +11.5°C")
				convey.So(out, convey.ShouldContainSubstring, "Working ranges: +2 0 +1 -1 0 -1")
			})
		})

		convey.Convey("When asking for JSON with separate targets", func() {
			out, err := run(t, "compute", "--log-level", "error", "--json", "--mode", "bprt",
				"--targets", "1000", "1008,5", "1003,7", "1001,2")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the outcome decodes", func() {
				var o service.Outcome
				convey.So(json.Unmarshal([]byte(out), &o), convey.ShouldBeNil)
				convey.So(o.Mode, convey.ShouldEqual, thermal.ModeSecondary)
				convey.So(o.Strategy, convey.ShouldEqual, solver.StrategyOptimize)
				convey.So(o.Targets.Uniform, convey.ShouldBeTrue)
				convey.So(o.Current, convey.ShouldResemble, thermal.Triple{1008.5, 1003.7, 1001.2})
			})
		})

		convey.Convey("When the input is invalid", func() {
			_, err := run(t, "compute", "--log-level", "error", "1008.5", "abc", "1001.2", "1000")
			convey.So(errors.Is(err, thermal.ErrInputFormat), convey.ShouldBeTrue)

			_, err = run(t, "compute", "--log-level", "error", "--mode", "turbo", "1008.5", "1003.7", "1001.2", "1000")
			convey.So(errors.Is(err, thermal.ErrModeInvalid), convey.ShouldBeTrue)

			_, err = run(t, "compute", "--log-level", "error", "--targets", "1000", "1008.5", "1003.7", "1001.2", "1000")
			convey.So(err, convey.ShouldNotBeNil)

			_, err = run(t, "compute", "--log-level", "error", "1008.5", "1003.7", "1001.2")
			convey.So(errors.Is(err, thermal.ErrInputFormat), convey.ShouldBeTrue)
		})

		convey.Convey("When the config is invalid", func() {
			_ = os.Setenv(config.EnvPrefix+"PRIMARY_CHARACTERISTIC_LENGTH", "0")
			defer func() { _ = os.Unsetenv(config.EnvPrefix + "PRIMARY_CHARACTERISTIC_LENGTH") }()
			_, err := run(t, "compute", "1008.5", "1003.7", "1001.2", "1000")
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the log format is unknown", func() {
			_, err := run(t, "compute", "--log-format", "xml", "1008.5", "1003.7", "1001.2", "1000")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestServe(t *testing.T) {
	t.Chdir(t.TempDir())

	convey.Convey("Given a running server", t, func() {
		convey.So(logger.Init(logger.WithWriter(io.Discard)), convey.ShouldBeNil)
		cfg := config.New()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		base := "http://" + ln.Addr().String()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serve(ctx, cfg, ln, nil) }()

		convey.Convey("Then the API answers until the context is cancelled", func() {
			var resp *http.Response
			for i := 0; i < 50; i++ {
				resp, err = http.Get(base + "/healthz")
				if err == nil {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}
			convey.So(err, convey.ShouldBeNil)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			_ = resp.Body.Close()

			resp, err = http.Get(base + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			_ = resp.Body.Close()

			resp, err = http.Post(base+"/v1/users/u1/reactors/R7/corrections", "application/json",
				bytes.NewBufferString(`{"input":"1008.5 1003.7 1001.2 1000"}`))
			convey.So(err, convey.ShouldBeNil)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			_ = resp.Body.Close()

			cancel()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("server did not stop")
			}
		})

		convey.Reset(func() {
			cancel()
		})
	})
}
