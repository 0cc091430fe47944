/* Position to Maidenhead locator conversion */
package main

import (
	"os"

	wsprbeacon "github.com/doismellburning/wsprbeacon/src"
)

func main() {
	wsprbeacon.LocatorMain(os.Args[1:])
}
