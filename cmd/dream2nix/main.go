package main

import (
	"github.com/baracoder/dream2nix/pkg/cmd"
	_ "github.com/baracoder/dream2nix/pkg/fetcher/git"
	_ "github.com/baracoder/dream2nix/pkg/fetcher/github"
	_ "github.com/baracoder/dream2nix/pkg/fetcher/http"
	_ "github.com/baracoder/dream2nix/pkg/fetcher/path"
)

func main() {
	cmd.Execute()
}
