// Package pkg provides the core libraries for uvlift manifest conversion.
//
// # Overview
//
// uvlift transforms Poetry pyproject.toml manifests into uv/PEP 621
// manifests. The pkg directory is organized into three main areas:
//
//  1. Parsing - [poetry] and [requirements] read the source documents into
//     the shared model defined by [manifest].
//  2. Translation - [constraint] rewrites Poetry version syntax into PEP 440
//     specifiers; [pyversion] handles Python interval math and git variant
//     selection.
//  3. Emission - [uv] projects the model into output documents; [convert]
//     orchestrates a full run.
//
// # Architecture
//
// The typical data flow through uvlift:
//
//	pyproject.toml (+ optional requirements.txt)
//	         ↓
//	    [poetry] / [requirements] (parse)
//	         ↓
//	    [manifest] model (immutable intermediate)
//	         ↓
//	    [uv] emitter via [constraint] + [pyversion]
//	         ↓
//	    pyproject_uv.toml / pyproject_pinned.toml
//
// # Quick Start
//
//	runner := convert.NewRunner(nil)
//	result, err := runner.Run(convert.Options{
//	    ProjectDir:   ".",
//	    Requirements: "requirements.txt",
//	})
//
// Both output documents are built in memory before either file is written,
// so a failing conversion never leaves a partial result behind.
package pkg
