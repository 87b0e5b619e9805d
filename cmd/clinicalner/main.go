// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"log"
	"os"

	"github.com/poiesic/clinicalner/ingest"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "clinicalner",
		Usage: "Extract medical entities from clinical notes and store them alongside the notes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append logs to this file instead of stderr",
			},
		},
		Before: setupLogger,
		After:  closeLogFile,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Load the clinical notes corpus into the notes table",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "jsonl",
						Usage: "Read rows from a JSON Lines export instead of the dataset server",
					},
					&cli.StringFlag{
						Name:  "hub-dataset",
						Usage: "Dataset to stream from the Hugging Face dataset server",
						Value: ingest.DefaultDataset,
					},
					&cli.StringFlag{
						Name:    "hub-token",
						Usage:   "Access token for gated datasets",
						EnvVars: []string{"HF_TOKEN"},
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Rows inserted per transaction",
						Value: ingest.DefaultChunkSize,
					},
				},
			},
			{
				Name:   "extract",
				Usage:  "Run entity extraction over every note and write batch artifacts",
				Action: extractCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents per artifact",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N notes",
						Value: 100,
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Directory receiving the batch artifacts",
						Value: "processed_medical_notes",
					},
					&cli.StringFlag{
						Name:  "model-host",
						Usage: "Extraction service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Extraction model name",
						Value: "qwen2.5:3b",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum confidence for a recognized span",
						Value: 0.5,
					},
					&cli.StringFlag{
						Name:  "state-dir",
						Usage: "Directory for checkpoints; enables --resume",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the last checkpointed note",
					},
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Apply batch artifacts to the notes table",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input-dir",
						Usage: "Directory holding the batch artifacts",
						Value: "processed_medical_notes",
					},
					&cli.StringFlag{
						Name:  "state-dir",
						Usage: "Directory for the applied-artifact ledger",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Apply artifacts even if the ledger says they were applied",
					},
					&cli.IntFlag{
						Name:  "load-workers",
						Usage: "Artifacts decoded concurrently",
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Print notes with their reconciled metadata",
				Action: showCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of notes to print",
						Value: 1,
					},
				},
			},
			{
				Name:   "find",
				Usage:  "Find notes by extracted entity",
				Action: findCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "label",
						Usage:    "Entity label (medication, diagnosis, symptom, procedure, body_part)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "term",
						Usage:    "Text to look for in the entity spans",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of notes to print",
						Value: 20,
					},
				},
			},
		},
	}
}
