package repository

import "errors"

// ErrRoomNotFound 在房間記錄不存在時回傳，呼叫端以 errors.Is 判斷
var ErrRoomNotFound = errors.New("room not found")
