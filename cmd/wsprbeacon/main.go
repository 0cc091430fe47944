package main

import (
	wsprbeacon "github.com/doismellburning/wsprbeacon/src"
)

func main() {
	wsprbeacon.BeaconMain()
}
