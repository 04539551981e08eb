package util

import "github.com/Lorinet/Hypefuse/lib/util/logger"

var log = logger.GetHypefuseLogger()
