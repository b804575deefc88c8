package main

import (
	_ "github.com/harunnryd/scout/internal/scenario/products"
	_ "github.com/harunnryd/scout/internal/scenario/social"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	Execute()
}
