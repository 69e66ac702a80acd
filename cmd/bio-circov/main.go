// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/circov/circov"
)

const version = "0.1.0"

var (
	genomePath  = flag.String("genome", "", "Genome FASTA (draft or complete); required")
	illumina    = flag.String("illumina", "", "Comma-separated Illumina FASTQ path(s): one single-end file, or R1,R2")
	nanopore    = flag.String("nanopore", "", "Nanopore FASTQ path")
	pacbio      = flag.String("pacbio", "", "PacBio HiFi FASTQ path")
	out         = flag.String("out", circov.DefaultOpts.Out, "Output directory")
	sample      = flag.String("sample", "", "Sample name for the summary; defaults to the genome file name")
	threads     = flag.Int("threads", circov.DefaultOpts.Threads, "Number of concurrent per-contig jobs, also passed to minimap2 and samtools")
	padding     = flag.Int("padding", circov.DefaultOpts.Padding, "Number of bases from the start of each circular contig appended to its end")
	windowCount = flag.Int("window-count", circov.DefaultOpts.WindowCount, "Target number of depth samples per contig")
	windowSize  = flag.Int("window-size", 0, "Distance between depth samples; overrides -window-count when positive")
	all         = flag.Bool("all", false, "Also extract the reads of every contig, and the unmapped reads, to <out>/fastq")
	useSamtools = flag.Bool("samtools", false, "Compute depth and coverage with samtools instead of reading the BAM directly")
	keepScratch = flag.Bool("keep-scratch", false, "Keep intermediate files")
	topContigs  = flag.Int("top-contigs", circov.DefaultOpts.TopContigs, "Number of longest contigs to report")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func bioCircovUsage() {
	fmt.Printf("Usage: %s -genome fasta [-illumina r1.fq[,r2.fq]] [-nanopore reads.fq] [-pacbio reads.fq] [OPTIONS]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func splitList(s string) []string {
	var list []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			list = append(list, f)
		}
	}
	return list
}

func main() {
	flag.Usage = bioCircovUsage
	shutdown := grail.Init()
	defer shutdown()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if flag.NArg() > 0 {
		log.Fatalf("Unexpected positional arguments: '%s'", strings.Join(flag.Args(), " "))
	}
	opts := circov.Opts{
		Genome:      *genomePath,
		Illumina:    splitList(*illumina),
		Nanopore:    *nanopore,
		PacBio:      *pacbio,
		Out:         *out,
		Sample:      *sample,
		Threads:     *threads,
		Padding:     *padding,
		WindowCount: *windowCount,
		WindowSize:  *windowSize,
		All:         *all,
		Samtools:    *useSamtools,
		KeepScratch: *keepScratch,
		TopContigs:  *topContigs,
	}
	log.Printf("bio-circov %s: genome %s, output %s", version, opts.Genome, opts.Out)
	ctx := vcontext.Background()
	if _, err := circov.Run(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
