package main

import "github.com/edgeflare/supactl/cmd/supactl"

func main() {
	supactl.Main()
}
