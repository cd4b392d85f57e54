package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/synthflow"
	"github.com/dudk/synthflow/driver"
	"github.com/dudk/synthflow/log"
	"github.com/dudk/synthflow/patch"
	"github.com/dudk/synthflow/signal"
	"github.com/dudk/synthflow/wav"
)

const renderBlockSize = 512

type renderCommand struct {
	patch    string
	out      string
	duration time.Duration
	bits     int
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render patch outputs into wav file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.patch, "patch", "", "yaml patch file to render (required)")
	fs.StringVar(&cmd.out, "out", "", "output wav file (required)")
	fs.DurationVar(&cmd.duration, "duration", time.Second, "duration of rendered audio")
	fs.IntVar(&cmd.bits, "bits", 16, "bit depth of output file, 16 or 32")
}

// Validate checks that required flags are provided.
func (cmd *renderCommand) Validate() error {
	var message string
	if cmd.patch == "" {
		message += "Missing -patch required flag\n"
	}
	if cmd.out == "" {
		message += "Missing -out required flag\n"
	}
	if cmd.duration <= 0 {
		message += "Duration must be positive\n"
	}
	if message != "" {
		return errors.New(message)
	}
	return nil
}

func (cmd *renderCommand) Run(out io.Writer) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	file, err := os.Open(cmd.patch)
	if err != nil {
		return err
	}
	p, err := patch.Parse(file)
	file.Close()
	if err != nil {
		return err
	}
	if len(p.Outputs) == 0 {
		return fmt.Errorf("patch %s has no outputs", cmd.patch)
	}

	l := log.GetLogger()
	f := synthflow.New(append(p.Options(), synthflow.WithLogger(l))...)
	inst, err := p.Build(f)
	if err != nil {
		return err
	}
	sink, err := wav.NewSink(cmd.out, f.SampleRate(), len(p.Outputs), signal.BitDepth(cmd.bits))
	if err != nil {
		return err
	}
	sinkNode, err := f.AddObject(sink)
	if err != nil {
		return err
	}
	for i, endpoint := range p.Outputs {
		node, port, err := inst.Endpoint(endpoint)
		if err != nil {
			return err
		}
		if err := f.ConnectObject(node, port, sinkNode, wav.ChannelPort(i)); err != nil {
			return err
		}
	}
	if err := f.StartObject(sinkNode); err != nil {
		return err
	}

	samples := signal.SamplesIn(f.SampleRate(), cmd.duration)
	err = render(f, samples, l)
	for _, n := range f.Nodes() {
		if serr := f.StopObject(n); err == nil {
			err = serr
		}
	}
	if err != nil {
		return err
	}
	if err := sink.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Rendered %v into %s\n", signal.DurationOf(f.SampleRate(), int64(sink.Written())), cmd.out)
	return nil
}

// render schedules full blocks with the driver and the remainder directly.
func render(f *synthflow.FlowSystem, samples int, l logrus.FieldLogger) error {
	if blocks := samples / renderBlockSize; blocks > 0 {
		d := driver.Run(context.Background(), f,
			driver.WithBlockSize(renderBlockSize),
			driver.WithBlockLimit(blocks),
			driver.WithLogger(l),
		)
		if err := d.Wait(); err != nil {
			return err
		}
	}
	if rest := samples % renderBlockSize; rest > 0 {
		if _, err := f.Schedule(rest); err != nil {
			return err
		}
	}
	return nil
}
