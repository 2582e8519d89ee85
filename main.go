package main

import (
	"log"

	"github.com/joho/godotenv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"

	"github.com/ConserveLee/flash-buyer/app/buyer"
	"github.com/ConserveLee/flash-buyer/app/tools"
	"github.com/ConserveLee/flash-buyer/internal/config"
	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/logging"
)

func main() {
	_ = godotenv.Load()

	path := config.Path()
	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("%v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	logger, closeLog, err := logging.Setup(cfg.Logging())
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	myApp := app.NewWithID(constants.AppID)
	myWindow := myApp.NewWindow(cfg.Window.Title)
	myWindow.Resize(fyne.NewSize(float32(cfg.Window.Width), float32(cfg.Window.Height)))

	buyerPanel := buyer.NewPanel(myWindow, path, cfg, logger)
	buyerContent := buyerPanel.Content()

	currentRegion := func() (screen.Region, error) {
		c, err := buyerPanel.Config()
		if err != nil {
			return screen.Region{}, err
		}
		return c.Region()
	}

	tabs := container.NewAppTabs(
		container.NewTabItem("抢购", buyerContent),
		container.NewTabItem("工具箱", tools.NewToolsPanel(myWindow, buyerPanel.SetRegion, currentRegion)),
	)
	tabs.SetTabLocation(container.TabLocationTop)

	myWindow.SetOnClosed(buyerPanel.Session().Close)
	myWindow.SetContent(tabs)
	logger.Info("started", "config", path)
	myWindow.ShowAndRun()
}
