// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bridge decodes the proprietary NMEA-style sentences a phone or
// microcontroller streams over a serial line:
//
//	$PSNSR,<A|M|G|P>,<v1>[,<v2>,<v3>]*hh   sensor reading
//	$PSNST,<interactive 0|1>,<unlocked 0|1>*hh   device state
package bridge

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/pedestrian_status/internal/sensor"
)

const (
	TypeSensor = "SNSR"
	TypeState  = "SNST"
)

var kindCodes = map[string]sensor.Kind{
	"A": sensor.Accelerometer,
	"M": sensor.Magnetometer,
	"G": sensor.Gyroscope,
	"P": sensor.Proximity,
}

// Reading is a decoded $PSNSR sentence.
type Reading struct {
	nmea.BaseSentence
	Event sensor.Event
}

// State is a decoded $PSNST sentence.
type State struct {
	nmea.BaseSentence
	Device sensor.DeviceState
}

var parser = nmea.SentenceParser{
	CustomParsers: map[string]nmea.ParserFunc{
		TypeSensor: parseReading,
		TypeState:  parseState,
	},
}

// Parse decodes one line. The checksum is verified.
func Parse(line string) (nmea.Sentence, error) {
	return parser.Parse(strings.TrimSpace(line))
}

func parseReading(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	code := p.String(0, "kind")
	if err := p.Err(); err != nil {
		return nil, err
	}
	kind, ok := kindCodes[code]
	if !ok {
		return nil, fmt.Errorf("nmea: %s invalid kind: %q", s.Prefix(), code)
	}

	n := 1
	if kind.Triaxial() {
		n = 3
	}
	if len(s.Fields) != n+1 {
		return nil, fmt.Errorf("nmea: %s %s needs %d values, got %d", s.Prefix(), kind, n, len(s.Fields)-1)
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = p.Float64(i+1, "value")
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	ev := sensor.Event{Kind: kind, Values: values}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return Reading{BaseSentence: s, Event: ev}, nil
}

func parseState(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) != 2 {
		return nil, fmt.Errorf("nmea: %s needs 2 fields, got %d", s.Prefix(), len(s.Fields))
	}
	p := nmea.NewParser(s)
	interactive := p.Int64(0, "interactive")
	unlocked := p.Int64(1, "unlocked")
	if err := p.Err(); err != nil {
		return nil, err
	}
	return State{
		BaseSentence: s,
		Device:       sensor.DeviceState{Interactive: interactive == 1, Unlocked: unlocked == 1},
	}, nil
}

// FormatReading encodes an event as a $PSNSR sentence.
func FormatReading(ev sensor.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	code := ""
	for c, k := range kindCodes {
		if k == ev.Kind {
			code = c
		}
	}
	n := 1
	if ev.Kind.Triaxial() {
		n = 3
	}
	fields := []string{"P" + TypeSensor, code}
	for _, v := range ev.Values[:n] {
		fields = append(fields, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return seal(strings.Join(fields, ",")), nil
}

// FormatState encodes a device state as a $PSNST sentence.
func FormatState(st sensor.DeviceState) string {
	return seal(fmt.Sprintf("P%s,%d,%d", TypeState, b2i(st.Interactive), b2i(st.Unlocked)))
}

func seal(body string) string {
	return "$" + body + "*" + nmea.Checksum(body)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Scan reads sentences from r until EOF or a read error. Lines that are not
// sentences are skipped; malformed sentences are passed to onError.
func Scan(r io.Reader, onReading func(sensor.Event), onState func(sensor.DeviceState), onError func(error)) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			dispatch(line, onReading, onState, onError)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("serial read: %w", err)
		}
	}
}

func dispatch(line string, onReading func(sensor.Event), onState func(sensor.DeviceState), onError func(error)) {
	sentence, err := Parse(line)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	switch s := sentence.(type) {
	case Reading:
		onReading(s.Event)
	case State:
		onState(s.Device)
	default:
		// other talkers on the same line (e.g. GPS) are ignored
	}
}
