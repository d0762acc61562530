// Command cxltrafficgen drives a simulated CXL flash device with synthetic
// workloads and reports what the cache and the flash did.
package main

func main() {
	Execute()
}
