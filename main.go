package main

import (
	"os"

	"github.com/threatexpert/goqtty/apps"
)

func main() {
	os.Exit(apps.App_Qtty_main(os.Args[1:]))
}
