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

/*
Given a genome assembly and reads from one or more sequencing technologies,
bio-circov reports read depth at sampled positions of every contig, per-contig
coverage statistics, and an overall summary.  Contigs whose FASTA description
marks them as circular (e.g. "circular=true") are padded with a copy of their
first bases, so reads that span the origin align contiguously; depth on the
padding is added back to the original coordinates.

minimap2 and samtools must be on $PATH.

Sample usage:
bio-circov \
    -genome assembly.fasta \
    -illumina sample_R1.fastq.gz,sample_R2.fastq.gz \
    -nanopore sample.nanopore.fastq.gz \
    -out results

Outputs, under the -out directory:
  depth.txt            contig, pos, <tech>_depth
  cov.txt              samtools-coverage columns for every technology
  <tech>_cov.txt       per-technology coverage
  overall_summary.txt  per-contig summary with "all" and "missing" rows
  fastq/               per-contig and unmapped reads (with -all)
*/
package main
