package cli

import (
	"fmt"
	"os"

	"github.com/julianstephens/habitmap/internal/constants"
)

type ExportCmd struct {
	Output string `short:"o" help:"Write to this file instead of stdout." type:"path"`
}

func (c *ExportCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	data, err := ctx.App.Export()
	if err != nil {
		return err
	}
	if c.Output == "" {
		ctx.printf("%s\n", data)
		return nil
	}
	if err := os.WriteFile(c.Output, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	ctx.printf("✓ Exported to %s\n", c.Output)
	return nil
}

type ImportCmd struct {
	File string `arg:"" help:"JSON document to import (any schema version)." type:"existingfile"`
}

func (c *ImportCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.File, err)
	}
	if _, err := ctx.snapshot(); err != nil {
		return fmt.Errorf("failed to back up current document before import: %w", err)
	}
	if err := ctx.App.ImportDocument(data); err != nil {
		return err
	}
	doc := ctx.App.Snapshot()
	ctx.printf("✓ Imported %d habit(s), %d day(s) of entries, %d todo(s)\n",
		len(doc.Habits), len(doc.Entries), len(doc.Todos))
	return nil
}

type ViewCmd struct {
	Set ViewSetCmd `cmd:"" help:"Set the default heatmap view."`
}

type ViewSetCmd struct {
	View string `arg:"" enum:"weekDays,month,week,year" help:"Heatmap view."`
}

func (c *ViewSetCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	if err := ctx.App.SetHeatmapView(constants.HeatmapView(c.View)); err != nil {
		return err
	}
	ctx.printf("Default view: %s\n", c.View)
	return nil
}
