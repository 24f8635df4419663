package main

import (
	"fmt"

	"github.com/yonwoo9/go-rowcask"
)

func main() {
	db, err := rowcask.OpenCache("test", rowcask.CacheCapacity(100))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// 写入一行
	id, err := db.Put([]byte("hello"))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("写入行", id)

	// 读取
	value, err := db.Get(id)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("读取行 %d: %s\n", id, value)

	// 批量写入
	ids, err := db.Store().BatchPut([][]byte{[]byte("world"), []byte("again")})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("批量写入成功", ids)

	// 删除
	if err = db.Delete(id); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("删除行", id)

	// 遍历
	it := db.Scan()
	for rowID, value := range it.All() {
		fmt.Printf("遍历 row:%d, val:%s\n", rowID, value)
	}
	if err := it.Err(); err != nil {
		fmt.Println(err)
	}

	fmt.Println("缓存统计:", db.Stats())
}
