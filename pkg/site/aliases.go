package site

import (
	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/engine"
	"git.home.luguber.info/inful/sitebuilder/internal/hooks"
)

// Types callers need to configure builds and write hooks.
type (
	Config     = config.Config
	Pipeline   = engine.Pipeline
	Unit       = engine.Unit
	File       = engine.File
	Files      = engine.Files
	Hook       = hooks.Func
	Hooks      = hooks.Set
	Checkpoint = hooks.Checkpoint
)

// Hook checkpoints in the order a build reaches them.
const (
	BuildBefore     = hooks.BuildBefore
	MetadataBefore  = hooks.MetadataBefore
	MetadataAfter   = hooks.MetadataAfter
	ContentsBefore  = hooks.ContentsBefore
	ContentsAfter   = hooks.ContentsAfter
	LayoutsBefore   = hooks.LayoutsBefore
	LayoutsAfter    = hooks.LayoutsAfter
	CSSBefore       = hooks.CSSBefore
	CSSAfter        = hooks.CSSAfter
	RedirectsBefore = hooks.RedirectsBefore
	RedirectsAfter  = hooks.RedirectsAfter
	ServeBefore     = hooks.ServeBefore
	ServeAfter      = hooks.ServeAfter
	BuildAfter      = hooks.BuildAfter
)

var (
	// UnitFunc wraps a function as a named unit.
	UnitFunc = engine.Func
	// Match restricts a registered unit to files matching doublestar patterns.
	Match = engine.Match
	// LoadConfig reads a YAML configuration file.
	LoadConfig = config.Load
	// IsSuperseded reports whether err aborted a build overtaken by a newer one.
	IsSuperseded = build.IsSuperseded
)
