package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benmeehan/ups-bridge/internal/poller"
)

// runProbe runs a single cycle and logs every answer, known or not.
func runProbe(ctx context.Context, controller *poller.Controller, log zerolog.Logger) error {
	out := controller.RunCycle(ctx)
	if !out.Success() {
		return out.Err
	}

	for _, name := range out.Snapshot.Names() {
		m, _ := out.Snapshot.Get(name)
		log.Info().Str("opcode", name).Uint16("raw", m.Raw).Str("raw_hex", fmt.Sprintf("%04X", m.Raw)).Msg("Probe response")
	}
	for _, res := range out.Unknown {
		log.Info().Str("frame", res.Hex()).Msg("Unknown data")
	}
	if missing := controller.Missing(out.Snapshot); len(missing) > 0 {
		log.Info().Strs("missing", missing).Msg("Opcodes without an answer")
	}

	log.Info().Int("answered", out.Snapshot.Len()).Int("unknown", len(out.Unknown)).Msg("Probe finished")
	return nil
}
