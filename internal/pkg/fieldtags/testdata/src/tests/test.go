package tests

type Person struct {
	password string `jflow:"source"`               // want "tagged field"
	secret   string `json:"secret" jflow:"source"` // want "tagged field"
	name     string `some_key:"non_secret"`
	age      int
}
